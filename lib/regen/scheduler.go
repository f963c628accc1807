// Package regen runs message list regenerations off the owning goroutine.
//
// At most one computation runs at a time. Requests submitted while one is
// running replace each other in a single pending slot: only the newest is
// computed next. Every submission bumps a generation counter so that the
// owner can discard results which were superseded before they arrived.
package regen

import (
	"context"
	"errors"
	"sync"
	"time"

	"git.sr.ht/~rjarry/msglist/lib/hide"
	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/sort"
	"git.sr.ht/~rjarry/msglist/lib/threading"
	"git.sr.ht/~rjarry/msglist/models"
	"git.sr.ht/~rjarry/msglist/worker/types"
)

var (
	ErrStaleResult = errors.New("stale regeneration result")
	ErrClosed      = errors.New("scheduler closed")
)

type Generation uint64

// Request describes one regeneration. It is handed to the worker and must
// not be modified after Submit.
type Request struct {
	// Store bound to the view when the request was made.
	Store types.Store
	// Search expression, all messages when empty.
	Search string
	// Hide expressions to resolve. Their matches are hidden along with
	// Hidden, which is left untouched.
	HideExprs []string
	// Changes which triggered the request, nil for criteria changes.
	Changes *models.ChangeSet

	Threaded        bool
	ThreadBySubject bool
	// Parent resolution: "jwz" or "references".
	Algorithm   string
	HideDeleted bool
	Hidden      hide.Set
	Window      hide.Range
	Less        sort.LessFunc
}

// Target is the outcome of a successful computation.
type Target struct {
	Forest *threading.Forest
	// uids matched by the request HideExprs
	HideMatches []models.UID
}

type Result struct {
	Gen     Generation
	Request *Request
	Target  *Target
	Err     error
	Elapsed time.Duration
}

type ComputeFunc func(ctx context.Context, req *Request) (*Target, error)

type job struct {
	gen Generation
	ctx context.Context
	req *Request
}

type Scheduler struct {
	compute ComputeFunc
	results chan *Result
	log     log.Logger

	mu      sync.Mutex
	gen     Generation
	running bool
	pending *job
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewScheduler(compute ComputeFunc) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		compute: compute,
		results: make(chan *Result, 1),
		log:     log.NewLogger("regen"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Results returns the channel on which computations are delivered. It must
// be drained by the owner.
func (s *Scheduler) Results() <-chan *Result {
	return s.results
}

// Submit schedules req and returns its generation. If a computation is
// running, req replaces any pending request and the running one becomes
// stale.
func (s *Scheduler) Submit(req *Request) Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.gen
	}
	s.gen++
	j := &job{gen: s.gen, ctx: s.ctx, req: req}
	if s.running {
		if s.pending != nil {
			s.log.Tracef("dropping pending generation %d", s.pending.gen)
		}
		s.pending = j
		return j.gen
	}
	s.running = true
	s.wg.Add(1)
	go s.loop(j)
	return j.gen
}

// Stale reports whether a result of generation gen was superseded.
func (s *Scheduler) Stale(gen Generation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.gen
}

// Check returns ErrStaleResult if res was superseded and the result error
// otherwise.
func (s *Scheduler) Check(res *Result) error {
	if s.Stale(res.Gen) {
		return ErrStaleResult
	}
	return res.Err
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Reset cancels the context of the running computation, drops the pending
// request and makes any result in flight stale.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.pending = nil
	s.gen++
}

// Close stops accepting requests, cancels the running computation and
// waits for the worker to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pending = nil
	s.gen++
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) loop(j *job) {
	defer log.PanicHandler()
	defer s.wg.Done()

	for j != nil {
		start := time.Now()
		target, err := s.compute(j.ctx, j.req)
		res := &Result{
			Gen:     j.gen,
			Request: j.req,
			Target:  target,
			Err:     err,
			Elapsed: time.Since(start),
		}
		s.log.Debugf("generation %d computed in %s (err=%v)",
			j.gen, res.Elapsed, err)

		select {
		case s.results <- res:
		case <-j.ctx.Done():
			s.log.Tracef("generation %d dropped: %v", j.gen, j.ctx.Err())
		}

		s.mu.Lock()
		j = s.pending
		s.pending = nil
		if j == nil || s.closed {
			j = nil
			s.running = false
		}
		s.mu.Unlock()
	}
}
