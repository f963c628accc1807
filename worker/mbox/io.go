package mboxer

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-mbox"
	"github.com/emersion/go-message/mail"

	"git.sr.ht/~rjarry/msglist/models"
	"git.sr.ht/~rjarry/msglist/worker/lib"
)

type message struct {
	uid     models.UID
	flags   models.Flags
	content []byte
}

func (m *message) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.content)), nil
}

func (m *message) ModelFlags() (models.Flags, error) {
	return m.flags, nil
}

func (m *message) UID() models.UID {
	return m.uid
}

// Read splits an mbox stream into raw messages. The key of each message is
// its Message-ID, or its position when it has none.
func Read(r io.Reader) ([]lib.RawMessage, []string, error) {
	mbr := mbox.NewReader(r)
	var messages []lib.RawMessage
	var keys []string
	for i := 0; ; i++ {
		msg, err := mbr.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, nil, err
		}

		content, err := io.ReadAll(msg)
		if err != nil {
			return nil, nil, err
		}

		messages = append(messages, &message{
			flags: models.SeenFlag, content: content,
		})
		keys = append(keys, messageKey(content, i))
	}
	return messages, keys, nil
}

func messageKey(content []byte, index int) string {
	h, err := mail.CreateReader(bytes.NewReader(content))
	if err == nil {
		defer h.Close()
		if id, err := h.Header.MessageID(); err == nil && id != "" {
			return id
		}
	}
	return fmt.Sprintf("#%d", index)
}
