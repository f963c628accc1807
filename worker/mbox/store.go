package mboxer

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/pkg/errors"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/uidstore"
	"git.sr.ht/~rjarry/msglist/models"
	"git.sr.ht/~rjarry/msglist/worker/lib"
	"git.sr.ht/~rjarry/msglist/worker/memory"
	"git.sr.ht/~rjarry/msglist/worker/types"
)

// Store is a read-only view of an mbox file. The file is parsed on Open and
// on Reload; changes between both are reported to subscribers.
type Store struct {
	*memory.Store
	path string
	uids *uidstore.Store
}

func Open(name, path string) (*Store, error) {
	s := &Store{
		Store: memory.NewStore(name),
		path:  path,
		uids:  uidstore.NewStore(),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload parses the file again. Messages are matched by Message-ID.
func (s *Store) Reload() error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.ErrStoreUnavailable
	} else if err != nil {
		return errors.Wrap(err, "could not open mbox")
	}
	defer f.Close()
	messages, keys, err := Read(f)
	if err != nil {
		return errors.Wrapf(err, "could not read %s", s.path)
	}

	seen := make(map[string]bool, len(keys))
	records := make([]*models.Record, 0, len(messages))
	for i, raw := range messages {
		key := keys[i]
		if seen[key] {
			key = fmt.Sprintf("%s#%d", key, i)
		}
		seen[key] = true
		m := raw.(*message)
		m.uid = s.uids.GetOrInsert(key)
		record, err := lib.ReadRecord(m)
		if err != nil {
			log.Warnf("%s: message %d: %v", s.path, i, err)
			continue
		}
		records = append(records, record)
	}

	uids, err := s.Store.Uids(context.Background())
	if err != nil {
		return err
	}
	present := make(map[models.UID]bool, len(records))
	var changed []*models.Record
	for _, r := range records {
		present[r.Uid] = true
		old, _ := s.Store.Record(context.Background(), r.Uid)
		if !old.Equal(r) {
			changed = append(changed, r)
		}
	}
	var gone []models.UID
	for _, uid := range uids {
		if !present[uid] {
			gone = append(gone, uid)
			s.uids.RemoveUID(uid)
		}
	}
	if len(gone) > 0 {
		s.Store.Delete(gone...)
	}
	if len(changed) > 0 {
		s.Store.Put(changed...)
	}
	return nil
}
