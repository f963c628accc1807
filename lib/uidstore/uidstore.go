// Package uidstore provides a concurrency-safe two-way mapping between UIDs
// used by the message list and arbitrary string keys as used by different
// mail backends.
//
// UIDs are only unique within one Store. Each store counts on its own so that
// two folders never share state.
package uidstore

import (
	"strconv"
	"sync"

	"git.sr.ht/~rjarry/msglist/models"
)

// Store holds a mapping between application keys and UIDs.
type Store struct {
	keyByUID map[models.UID]string
	uidByKey map[string]models.UID
	next     uint64
	m        sync.Mutex
}

// NewStore creates a new, empty Store.
func NewStore() *Store {
	return &Store{
		keyByUID: make(map[models.UID]string),
		uidByKey: make(map[string]models.UID),
	}
}

// GetOrInsert returns the UID for the provided key. If the key was already
// present in the store, the same UID value is returned. Otherwise, the key is
// inserted and the newly generated UID is returned.
func (s *Store) GetOrInsert(key string) models.UID {
	s.m.Lock()
	defer s.m.Unlock()
	if uid, ok := s.uidByKey[key]; ok {
		return uid
	}
	s.next++
	uid := models.UID(strconv.FormatUint(s.next, 10))
	s.keyByUID[uid] = key
	s.uidByKey[key] = uid
	return uid
}

// GetUID returns the UID for the provided key, if available.
func (s *Store) GetUID(key string) (models.UID, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	uid, ok := s.uidByKey[key]
	return uid, ok
}

// GetKey returns the key for the provided UID, if available.
func (s *Store) GetKey(uid models.UID) (string, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	key, ok := s.keyByUID[uid]
	return key, ok
}

// RemoveUID removes the specified UID from the store.
func (s *Store) RemoveUID(uid models.UID) {
	s.m.Lock()
	defer s.m.Unlock()
	key, ok := s.keyByUID[uid]
	if ok {
		delete(s.uidByKey, key)
	}
	delete(s.keyByUID, uid)
}

// Len returns the number of known keys.
func (s *Store) Len() int {
	s.m.Lock()
	defer s.m.Unlock()
	return len(s.keyByUID)
}
