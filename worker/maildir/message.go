package maildir

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-maildir"
	"github.com/pkg/errors"

	"git.sr.ht/~rjarry/msglist/models"
)

// A Message is an individual email inside of a maildir.Dir.
type Message struct {
	dir maildir.Dir
	uid models.UID
	key string
	// file name in cur/ when the folder was last scanned
	name string
}

// NewReader opens the message file. If the message was renamed since the
// last scan, it is looked up by key.
func (m Message) NewReader() (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(string(m.dir), "cur", m.name))
	if errors.Is(err, fs.ErrNotExist) {
		return m.dir.Open(m.key)
	}
	return f, err
}

// Flags returns the maildir flags encoded in the message file name.
func (m Message) Flags() []maildir.Flag {
	_, info, ok := strings.Cut(m.name, ":2,")
	if !ok {
		return nil
	}
	var flags []maildir.Flag
	for _, r := range info {
		flags = append(flags, maildir.Flag(r))
	}
	return flags
}

// ModelFlags fetches the set of models.flags currently applied to the message.
func (m Message) ModelFlags() (models.Flags, error) {
	return translateMaildirFlags(m.Flags()), nil
}

func (m Message) UID() models.UID {
	return m.uid
}

var maildirToFlag = map[maildir.Flag]models.Flags{
	maildir.FlagReplied: models.AnsweredFlag,
	maildir.FlagSeen:    models.SeenFlag,
	maildir.FlagTrashed: models.DeletedFlag,
	maildir.FlagFlagged: models.FlaggedFlag,
	// maildir.FlagDraft Flag = 'D'
	// maildir.FlagPassed Flag = 'P'
}

func translateMaildirFlags(maildirFlags []maildir.Flag) models.Flags {
	var flags models.Flags
	for _, maildirFlag := range maildirFlags {
		if flag, ok := maildirToFlag[maildirFlag]; ok {
			flags |= flag
		}
	}
	return flags
}

// splitName returns the unique key of a file name in cur/.
func splitName(name string) string {
	key, _, _ := strings.Cut(name, ":")
	return key
}
