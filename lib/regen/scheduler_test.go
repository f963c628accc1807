package regen_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"git.sr.ht/~rjarry/msglist/lib/regen"
	"git.sr.ht/~rjarry/msglist/lib/threading"
)

type blockingCompute struct {
	mu       sync.Mutex
	started  chan string
	release  chan struct{}
	computed []string
}

func newBlockingCompute() *blockingCompute {
	return &blockingCompute{
		started: make(chan string, 10),
		release: make(chan struct{}),
	}
}

func (b *blockingCompute) compute(ctx context.Context, req *regen.Request,
) (*regen.Target, error) {
	b.started <- req.Search
	<-b.release
	b.mu.Lock()
	b.computed = append(b.computed, req.Search)
	b.mu.Unlock()
	if req.Search == "bad" {
		return nil, errors.New("malformed")
	}
	return &regen.Target{Forest: &threading.Forest{}}, nil
}

func receive(t *testing.T, s *regen.Scheduler) *regen.Result {
	t.Helper()
	select {
	case res := <-s.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for result")
	}
	return nil
}

func TestSchedulerCoalescing(t *testing.T) {
	b := newBlockingCompute()
	s := regen.NewScheduler(b.compute)
	defer s.Close()

	g1 := s.Submit(&regen.Request{Search: "R1"})
	assert.Equal(t, "R1", <-b.started)
	g2 := s.Submit(&regen.Request{Search: "R2"})
	g3 := s.Submit(&regen.Request{Search: "R3"})
	assert.True(t, g1 < g2 && g2 < g3)
	assert.True(t, s.Running())

	close(b.release)

	var applied []string
	for i := 0; i < 2; i++ {
		res := receive(t, s)
		if err := s.Check(res); err != nil {
			assert.ErrorIs(t, err, regen.ErrStaleResult)
			continue
		}
		applied = append(applied, res.Request.Search)
	}
	assert.Equal(t, []string{"R3"}, applied)

	b.mu.Lock()
	assert.Equal(t, []string{"R1", "R3"}, b.computed)
	b.mu.Unlock()
	assert.Eventually(t, func() bool { return !s.Running() },
		time.Second, time.Millisecond)
}

func TestSchedulerErrorReturnsToIdle(t *testing.T) {
	b := newBlockingCompute()
	close(b.release)
	s := regen.NewScheduler(b.compute)
	defer s.Close()

	s.Submit(&regen.Request{Search: "bad"})
	res := receive(t, s)
	assert.NotNil(t, s.Check(res))
	assert.Nil(t, res.Target)

	assert.Eventually(t, func() bool { return !s.Running() },
		time.Second, time.Millisecond)

	s.Submit(&regen.Request{Search: "good"})
	res = receive(t, s)
	assert.Nil(t, s.Check(res))
	assert.NotNil(t, res.Target)
}

func TestSchedulerReset(t *testing.T) {
	cancelled := make(chan error, 1)
	s := regen.NewScheduler(func(ctx context.Context, req *regen.Request,
	) (*regen.Target, error) {
		<-ctx.Done()
		cancelled <- ctx.Err()
		return nil, ctx.Err()
	})
	defer s.Close()

	gen := s.Submit(&regen.Request{})
	s.Reset()
	assert.ErrorIs(t, <-cancelled, context.Canceled)
	assert.True(t, s.Stale(gen))
}

func TestSchedulerClosed(t *testing.T) {
	s := regen.NewScheduler(func(context.Context, *regen.Request,
	) (*regen.Target, error) {
		return &regen.Target{}, nil
	})
	s.Close()
	s.Submit(&regen.Request{})
	assert.False(t, s.Running())
	select {
	case res := <-s.Results():
		t.Errorf("unexpected result after close: %+v", res)
	case <-time.After(20 * time.Millisecond):
	}
}
