// Package settings persists per folder view state in a goleveldb database,
// or in memory when no database can be opened.
package settings

import (
	"errors"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/msglist"
)

const folderPrefix = "folder/"

type Store struct {
	mu   sync.Mutex
	mem  map[string][]byte
	file *leveldb.DB
}

// Open opens the database in dir. An empty dir or a database which cannot
// be opened yields a memory store.
func Open(dir string) *Store {
	s := new(Store)
	if dir != "" {
		var err error
		_ = os.MkdirAll(dir, 0o700)
		s.file, err = leveldb.OpenFile(dir, nil)
		if err != nil {
			log.Errorf("failed to open goleveldb: %s", err)
		}
	}
	if s.file == nil {
		s.mem = make(map[string][]byte)
	}
	return s
}

func (s *Store) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *Store) get(key string) ([]byte, error) {
	if s.file != nil {
		return s.file.Get([]byte(key), nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.mem[key]
	if !ok {
		return nil, leveldb.ErrNotFound
	}
	return value, nil
}

func (s *Store) put(key string, value []byte) error {
	if s.file != nil {
		return s.file.Put([]byte(key), value, nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[key] = value
	return nil
}

func (s *Store) Load(folder string) (*msglist.FolderState, error) {
	buf, err := s.get(folderPrefix + folder)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var state msglist.FolderState
	if err := json.Unmarshal(buf, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) Save(folder string, state *msglist.FolderState) error {
	buf, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.put(folderPrefix+folder, buf)
}

// Folders returns the names of the folders with a saved state.
func (s *Store) Folders() ([]string, error) {
	var folders []string
	if s.file == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for key := range s.mem {
			folders = append(folders, key[len(folderPrefix):])
		}
		return folders, nil
	}
	iter := s.file.NewIterator(util.BytesPrefix([]byte(folderPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		folders = append(folders, string(iter.Key()[len(folderPrefix):]))
	}
	return folders, iter.Error()
}
