// Package msglist maintains the displayed message list of one folder: a
// forest of message nodes kept in sync with a store by applying minimal
// mutation logs computed against regenerated targets.
package msglist

import (
	"context"
	"errors"
	"time"

	"git.sr.ht/~rjarry/msglist/lib/hide"
	"git.sr.ht/~rjarry/msglist/lib/iterator"
	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/regen"
	"git.sr.ht/~rjarry/msglist/lib/sort"
	"git.sr.ht/~rjarry/msglist/lib/threading"
	"git.sr.ht/~rjarry/msglist/models"
	"git.sr.ht/~rjarry/msglist/worker/types"
)

const DefaultFastPathLimit = 100

// Observer receives the engine notifications. Every method is called on
// the owner goroutine.
type Observer interface {
	OnMutation(log MutationLog)
	OnRegenComplete()
	OnCursorLost()
	OnError(err error)
}

type nopObserver struct{}

func (nopObserver) OnMutation(MutationLog) {}
func (nopObserver) OnRegenComplete()       {}
func (nopObserver) OnCursorLost()          {}
func (nopObserver) OnError(error)          {}

type Options struct {
	Threaded        bool
	ThreadBySubject bool
	// AlgorithmJWZ (default) or AlgorithmReferences
	Algorithm   string
	HideDeleted bool
	Sort        []*sort.SortCriterion
	// Largest change set patched in place. Zero selects
	// DefaultFastPathLimit, a negative value disables the fast path.
	FastPathLimit int
}

// Engine owns a View and keeps it up to date. Apart from HideUids and
// QueueFunc, its methods must be called from a single owner goroutine,
// usually the one running Run.
type Engine struct {
	opts     Options
	observer Observer
	settings Settings
	log      log.Logger

	store   types.Store
	state   *FolderState
	sort    []*sort.SortCriterion
	search  string
	applied string
	changes <-chan models.ChangeSet
	cancel  context.CancelFunc
	// a submitted regeneration was not processed yet
	waiting bool

	view      *View
	hide      *hide.State
	sched     *regen.Scheduler
	callbacks chan func()
}

// NewEngine returns an engine without folder. observer and settings may be
// nil.
func NewEngine(opts Options, observer Observer, settings Settings) *Engine {
	if observer == nil {
		observer = nopObserver{}
	}
	if opts.FastPathLimit == 0 {
		opts.FastPathLimit = DefaultFastPathLimit
	}
	return &Engine{
		opts:      opts,
		observer:  observer,
		settings:  settings,
		log:       log.NewLogger("msglist"),
		sort:      opts.Sort,
		view:      NewView(),
		hide:      hide.NewState(),
		sched:     regen.NewScheduler(compute),
		callbacks: make(chan func(), 50),
	}
}

// View gives read access to the displayed forest. It must not be modified.
func (e *Engine) View() *View {
	return e.view
}

func (e *Engine) Store() types.Store {
	return e.store
}

// Uids returns the displayed uids in display order.
func (e *Engine) Uids() []models.UID {
	return e.view.Uids()
}

func (e *Engine) Selected() models.UID {
	return e.view.Cursor()
}

// Forest returns a snapshot of the displayed forest.
func (e *Engine) Forest() *threading.Forest {
	return e.view.Forest()
}

func (e *Engine) Walk(fn func(id NodeID, level int) error) error {
	return e.view.Walk(fn)
}

// Results is the channel the owner must drain and pass to Process when it
// does not use Run.
func (e *Engine) Results() <-chan *regen.Result {
	return e.sched.Results()
}

// Changes is the change stream of the current store, nil without folder.
func (e *Engine) Changes() <-chan models.ChangeSet {
	return e.changes
}

// QueueFunc schedules fn to run on the owner goroutine. It may be called
// from any goroutine.
func (e *Engine) QueueFunc(fn func()) {
	e.callbacks <- fn
}

// Flush runs the queued functions. It is meant for owners which do not use
// Run.
func (e *Engine) Flush() {
	for {
		select {
		case fn := <-e.callbacks:
			fn()
		default:
			return
		}
	}
}

// Run processes callbacks, regeneration results and store changes until ctx
// is done.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.callbacks:
			fn()
		case res := <-e.sched.Results():
			_ = e.Process(res)
		case changes, ok := <-e.changes:
			if !ok {
				e.changes = nil
				e.regenerate(nil)
				continue
			}
			e.HandleChanges(changes)
		}
	}
}

// Close cancels the running regeneration and the store subscription.
func (e *Engine) Close() {
	e.sched.Close()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// SetFolder binds the engine to store, replacing the displayed list. The
// hide state and the search are reset; the sort criteria and the hide
// window are restored from the settings. A nil store detaches the engine.
func (e *Engine) SetFolder(store types.Store) {
	e.sched.Reset()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.changes = nil
	e.waiting = false
	e.search = ""
	e.applied = ""
	e.hide.Clear()
	e.sort = e.opts.Sort
	e.state = nil
	e.clear()

	e.store = store
	if store == nil {
		return
	}
	e.loadState()
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.changes = store.Subscribe(ctx)
	e.regenerate(nil)
}

func (e *Engine) loadState() {
	if e.settings == nil {
		return
	}
	state, err := e.settings.Load(e.store.Name())
	if err != nil {
		e.log.Warnf("%s: cannot load settings: %v", e.store.Name(), err)
		return
	}
	if state == nil {
		return
	}
	e.state = state
	if len(state.Sort) > 0 {
		criteria, err := sort.GetSortCriteria(state.Sort)
		if err != nil {
			e.log.Warnf("%s: ignoring saved sort: %v", e.store.Name(), err)
		} else {
			e.sort = criteria
		}
	}
	// states saved without window
	if state.HideLower == 0 && state.HideUpper == 0 {
		return
	}
	e.hide.SetWindow(hide.Range{Lower: state.HideLower, Upper: state.HideUpper})
}

func (e *Engine) saveState() {
	if e.settings == nil || e.store == nil {
		return
	}
	if e.state == nil {
		e.state = &FolderState{}
	}
	window := e.hide.Window()
	e.state.Sort = sort.Criteria(e.sort)
	e.state.HideLower = window.Lower
	e.state.HideUpper = window.Upper
	if err := e.settings.Save(e.store.Name(), e.state); err != nil {
		e.log.Warnf("%s: cannot save settings: %v", e.store.Name(), err)
	}
}

func (e *Engine) SetThreaded(threaded bool) {
	if e.opts.Threaded == threaded {
		return
	}
	e.opts.Threaded = threaded
	e.regenerate(nil)
}

func (e *Engine) SetHideDeleted(hideDeleted bool) {
	if e.opts.HideDeleted == hideDeleted {
		return
	}
	e.opts.HideDeleted = hideDeleted
	e.regenerate(nil)
}

// SetSort changes the sibling order and saves it for the current folder.
func (e *Engine) SetSort(criteria []*sort.SortCriterion) {
	e.sort = criteria
	e.saveState()
	e.regenerate(nil)
}

// SetColumns saves the displayed columns of the current folder. The engine
// does not interpret them.
func (e *Engine) SetColumns(columns []string) {
	if e.state == nil {
		e.state = &FolderState{}
	}
	e.state.Columns = columns
	e.saveState()
}

// Columns returns the columns saved for the current folder.
func (e *Engine) Columns() []string {
	if e.state == nil {
		return nil
	}
	return e.state.Columns
}

// SetSearch restricts the list to the messages matching expr. An empty expr
// clears the search.
func (e *Engine) SetSearch(expr string) {
	e.search = expr
	e.regenerate(nil)
}

// HideAdd hides the messages currently matching expr (if not empty) and
// moves the window bounds which are not hide.Same.
func (e *Engine) HideAdd(expr string, lower, upper int) {
	e.hide.Add(expr, lower, upper)
	if lower != hide.Same || upper != hide.Same {
		e.saveState()
	}
	e.regenerate(nil)
}

// HideUids hides uids. It may be called from any goroutine, the list is
// regenerated on the owner goroutine.
func (e *Engine) HideUids(uids []models.UID) {
	if e.hide.HideUids(uids) == 0 {
		return
	}
	e.QueueFunc(func() { e.regenerate(nil) })
}

// HideClear shows everything again.
func (e *Engine) HideClear() {
	window := e.hide.Window()
	e.hide.Clear()
	if !window.IsFull() {
		e.saveState()
	}
	e.regenerate(nil)
}

// SelectUid moves the cursor to uid if it is displayed.
func (e *Engine) SelectUid(uid models.UID) bool {
	return e.view.Select(uid)
}

// SelectRelative moves the cursor to the next displayed message, in
// direction, whose flags masked by mask equal value. Without cursor the
// search starts from the top (or bottom).
func (e *Engine) SelectRelative(direction int, mask, value models.Flags,
	wrap bool,
) (models.UID, bool) {
	ids := e.displayOrder()
	idx := -1
	if direction < 0 {
		idx = len(ids)
	}
	if cursor, ok := e.view.Lookup(e.view.Cursor()); ok {
		for i, id := range ids {
			if id == cursor {
				idx = i
				break
			}
		}
	}
	found := iterator.Seek(idx, direction, iterator.Span(len(ids)), wrap,
		func(i int) bool {
			return e.view.Record(ids[i]).Flags&mask == value
		})
	if found < 0 {
		return "", false
	}
	uid := e.view.Record(ids[found]).Uid
	e.view.Select(uid)
	return uid, true
}

func (e *Engine) displayOrder() []NodeID {
	ids := make([]NodeID, 0, e.view.Len())
	_ = e.view.Walk(func(id NodeID, _ int) error {
		ids = append(ids, id)
		return nil
	})
	return ids
}

// HandleChanges reacts to a store change set. Small changes are applied
// synchronously when no search, hide expression or window is active and no
// regeneration is pending. Everything else schedules a regeneration.
func (e *Engine) HandleChanges(changes models.ChangeSet) {
	if changes.Empty() {
		return
	}
	if e.fastPathAllowed(&changes) && e.fastPath(&changes) {
		return
	}
	e.regenerate(&changes)
}

func (e *Engine) fastPathAllowed(changes *models.ChangeSet) bool {
	return e.store != nil &&
		e.opts.FastPathLimit > 0 &&
		changes.Len() <= e.opts.FastPathLimit &&
		e.search == "" &&
		!e.hide.Pending() &&
		e.hide.Window().IsFull() &&
		!e.waiting
}

// fastPath rebuilds the displayed list from the displayed records and the
// touched ones, without querying the whole store. Threads are resolved again
// over that set, as a full regeneration would over the visible records. It
// returns false when the store could not be queried.
func (e *Engine) fastPath(changes *models.ChangeSet) bool {
	start := time.Now()
	touched := make(map[models.UID]*models.Record, changes.Len())
	for _, list := range [][]models.UID{changes.Removed, changes.Added, changes.Changed} {
		for _, uid := range list {
			if _, ok := touched[uid]; ok {
				continue
			}
			r, err := e.store.Record(context.Background(), uid)
			if err != nil {
				e.log.Debugf("fast path aborted: %v", err)
				return false
			}
			touched[uid] = r
		}
	}

	records := make([]*models.Record, 0, e.view.Len()+len(touched))
	_ = e.view.Walk(func(id NodeID, _ int) error {
		r := e.view.Record(id)
		if _, ok := touched[r.Uid]; !ok {
			records = append(records, r)
		}
		return nil
	})
	for _, r := range touched {
		if r == nil || e.hide.IsHidden(r.Uid) {
			continue
		}
		if e.opts.HideDeleted && r.Flags.Has(models.DeletedFlag) {
			continue
		}
		records = append(records, r)
	}
	e.apply(buildForest(records, e.opts.Threaded, e.algorithm(),
		e.opts.ThreadBySubject, sort.Less(e.sort)))
	e.log.Tracef("fast path: %d changes patched in %s",
		changes.Len(), time.Since(start))
	e.observer.OnRegenComplete()
	return true
}

func (e *Engine) algorithm() string {
	if e.opts.Algorithm == "" {
		return AlgorithmJWZ
	}
	return e.opts.Algorithm
}

func (e *Engine) regenerate(changes *models.ChangeSet) {
	if e.store == nil {
		return
	}
	snap := e.hide.Snapshot()
	e.waiting = true
	gen := e.sched.Submit(&regen.Request{
		Store:           e.store,
		Search:          e.search,
		HideExprs:       snap.Exprs,
		Changes:         changes,
		Threaded:        e.opts.Threaded,
		ThreadBySubject: e.opts.ThreadBySubject,
		Algorithm:       e.algorithm(),
		HideDeleted:     e.opts.HideDeleted,
		Hidden:          snap.Hidden,
		Window:          snap.Window,
		Less:            sort.Less(e.sort),
	})
	e.log.Tracef("%s: generation %d submitted", e.store.Name(), gen)
}

// Process applies a regeneration result. Stale results are dropped and
// regen.ErrStaleResult returned; computation errors are reported to the
// observer and returned.
func (e *Engine) Process(res *regen.Result) error {
	err := e.sched.Check(res)
	if errors.Is(err, regen.ErrStaleResult) {
		e.log.Tracef("generation %d is stale", res.Gen)
		return err
	}
	e.waiting = false
	if err != nil {
		e.fail(res.Request, err)
		return err
	}
	req := res.Request
	if len(req.HideExprs) > 0 {
		e.hide.Resolve(req.HideExprs, res.Target.HideMatches)
	}
	e.applied = req.Search
	e.apply(res.Target.Forest)
	e.log.Debugf("generation %d applied, %d messages displayed",
		res.Gen, e.view.Len())
	e.observer.OnRegenComplete()
	return nil
}

func (e *Engine) apply(target *threading.Forest) {
	mutations := e.view.Apply(target)
	if len(mutations) > 0 {
		e.observer.OnMutation(mutations)
	}
	if e.view.checkCursor() {
		e.observer.OnCursorLost()
	}
}

func (e *Engine) clear() {
	cursor := e.view.Cursor()
	mutations := e.view.Clear()
	e.view.cursor = ""
	if len(mutations) > 0 {
		e.observer.OnMutation(mutations)
	}
	if cursor != "" {
		e.observer.OnCursorLost()
	}
}

func (e *Engine) fail(req *regen.Request, err error) {
	var qerr *types.QueryError
	switch {
	case errors.Is(err, context.Canceled):
		e.log.Tracef("regeneration cancelled")
		return
	case errors.As(err, &qerr):
		retry := false
		for _, expr := range req.HideExprs {
			if expr == qerr.Expr {
				e.hide.Discard([]string{expr})
				retry = true
				break
			}
		}
		if qerr.Expr == req.Search && req.Search == e.search {
			e.search = e.applied
			retry = true
		}
		e.log.Warnf("%v", err)
		e.observer.OnError(err)
		if retry && e.hide.Pending() {
			e.regenerate(nil)
		}
	case errors.Is(err, types.ErrStoreUnavailable):
		e.log.Errorf("%s: %v", req.Store.Name(), err)
		e.clear()
		e.observer.OnError(err)
	default:
		e.log.Errorf("regeneration failed: %v", err)
		e.observer.OnError(err)
	}
}
