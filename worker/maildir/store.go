package maildir

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/emersion/go-maildir"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/uidstore"
	"git.sr.ht/~rjarry/msglist/lib/watchers"
	"git.sr.ht/~rjarry/msglist/models"
	"git.sr.ht/~rjarry/msglist/worker/lib"
	"git.sr.ht/~rjarry/msglist/worker/types"
)

// delay between the first file system event and the rescan it triggers
const settleDelay = 50 * time.Millisecond

// Store serves the messages of one maildir folder. Records are parsed on
// demand and cached until the message file is renamed or removed.
type Store struct {
	name     string
	dir      maildir.Dir
	uids     *uidstore.Store
	notifier *lib.Notifier
	log      log.Logger

	mu      sync.Mutex
	names   map[models.UID]string
	cache   map[models.UID]*models.Record
	watcher watchers.FSWatcher
	closed  bool
	stop    context.CancelFunc
}

// NewStore opens the maildir at path. New messages are moved into cur.
func NewStore(name, path string) (*Store, error) {
	dir := maildir.Dir(path)
	if _, err := os.Stat(filepath.Join(path, "cur")); err != nil {
		return nil, errors.Wrapf(err, "%s is not a maildir", path)
	}
	s := &Store{
		name:     name,
		dir:      dir,
		uids:     uidstore.NewStore(),
		notifier: lib.NewNotifier(),
		log:      log.NewLogger("maildir:" + name),
		names:    make(map[models.UID]string),
		cache:    make(map[models.UID]*models.Record),
	}
	if _, _, err := s.scan(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) Uids(ctx context.Context) ([]models.UID, error) {
	changes, uids, err := s.scan()
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(changes)
	return uids, nil
}

func (s *Store) Record(ctx context.Context, uid models.UID) (*models.Record, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, types.ErrStoreUnavailable
	}
	name, ok := s.names[uid]
	cached := s.cache[uid]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	if cached != nil {
		return cached.Clone(), nil
	}
	key, ok := s.uids.GetKey(uid)
	if !ok {
		return nil, nil
	}
	record, err := lib.ReadRecord(Message{dir: s.dir, uid: uid, key: key, name: name})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "message %s", key)
	}
	s.mu.Lock()
	if s.names[uid] == name {
		s.cache[uid] = record
	}
	s.mu.Unlock()
	return record.Clone(), nil
}

func (s *Store) Search(ctx context.Context, expr string) ([]models.UID, error) {
	criteria, err := lib.ParseSearch(expr)
	if err != nil {
		return nil, err
	}
	_, uids, err := s.scan()
	if err != nil {
		return nil, err
	}
	records := make([]*models.Record, len(uids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, uid := range uids {
		i, uid := i, uid
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := s.Record(ctx, uid)
			if err != nil {
				s.log.Warnf("search: %v", err)
				return nil
			}
			records[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lib.Search(records, criteria), nil
}

// Subscribe starts watching the folder on first use.
func (s *Store) Subscribe(ctx context.Context) <-chan models.ChangeSet {
	ch := s.notifier.Subscribe(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil || s.closed {
		return ch
	}
	watcher, err := watchers.NewWatcher()
	if err == nil {
		err = watcher.Configure(filepath.Join(string(s.dir), "cur"))
	}
	if err == nil {
		err = watcher.Add(filepath.Join(string(s.dir), "new"))
	}
	if err != nil {
		s.log.Errorf("cannot watch folder, changes will not be reported: %v", err)
		if watcher != nil {
			watcher.Close()
		}
		return ch
	}
	watchCtx, stop := context.WithCancel(context.Background())
	s.watcher = watcher
	s.stop = stop
	go s.watch(watchCtx, watcher)
	return ch
}

func (s *Store) watch(ctx context.Context, watcher watchers.FSWatcher) {
	defer log.PanicHandler()
	timer := time.NewTimer(settleDelay)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events():
			if !ok {
				return
			}
			s.log.Tracef("%s %s", ev.Operation, ev.Path)
			timer.Reset(settleDelay)
		case <-timer.C:
			changes, _, err := s.scan()
			if err != nil {
				s.log.Errorf("rescan: %v", err)
				if errors.Is(err, types.ErrStoreUnavailable) {
					return
				}
				continue
			}
			s.notifier.Notify(changes)
		}
	}
}

// Close stops watching the folder. The store is unusable afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.stop != nil {
		s.stop()
		s.watcher.Close()
	}
	s.notifier.Close()
}

// scan moves new messages into cur and compares the content of cur with the
// previous scan. It returns the uids of the folder sorted by key.
func (s *Store) scan() (models.ChangeSet, []models.UID, error) {
	var changes models.ChangeSet
	if _, err := s.dir.Unseen(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return changes, nil, types.ErrStoreUnavailable
		}
		return changes, nil, errors.Wrap(err, "could not move new messages")
	}
	entries, err := os.ReadDir(filepath.Join(string(s.dir), "cur"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return changes, nil, types.ErrStoreUnavailable
		}
		return changes, nil, errors.Wrap(err, "could not list messages")
	}
	keys := make([]string, 0, len(entries))
	names := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		key := splitName(e.Name())
		keys = append(keys, key)
		names[key] = e.Name()
	}
	sort.Strings(keys)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return changes, nil, types.ErrStoreUnavailable
	}
	current := make(map[models.UID]string, len(keys))
	uids := make([]models.UID, 0, len(keys))
	for _, key := range keys {
		uid := s.uids.GetOrInsert(key)
		uids = append(uids, uid)
		current[uid] = names[key]
		previous, known := s.names[uid]
		switch {
		case !known:
			changes.Added = append(changes.Added, uid)
		case previous != names[key]:
			changes.Changed = append(changes.Changed, uid)
			delete(s.cache, uid)
		}
	}
	for uid := range s.names {
		if _, ok := current[uid]; !ok {
			changes.Removed = append(changes.Removed, uid)
			delete(s.cache, uid)
			s.uids.RemoveUID(uid)
		}
	}
	s.names = current
	if !changes.Empty() {
		s.log.Debugf("%d added, %d removed, %d changed", len(changes.Added),
			len(changes.Removed), len(changes.Changed))
	}
	return changes, uids, nil
}
