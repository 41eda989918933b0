package reaper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/islandrelay/internal/dependencies/mocks"
	"github.com/mcoot/islandrelay/internal/model"
	"github.com/mcoot/islandrelay/internal/protocol"
	"github.com/mcoot/islandrelay/internal/services/registry"
	"github.com/mcoot/islandrelay/internal/storage/memory"
	"github.com/mcoot/islandrelay/internal/testutil"
)

type ReaperSuite struct {
	suite.Suite
	clock    *mocks.MockClock
	registry *registry.Registry
	reaper   *Reaper
	ctx      context.Context
}

func TestReaperSuite(t *testing.T) {
	suite.Run(t, new(ReaperSuite))
}

func (s *ReaperSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = registry.New(memory.New(), s.clock, model.DefaultSpawn)
	s.reaper = New(s.registry, s.clock, DefaultTimeout, DefaultInterval, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ReaperSuite) TestSweepEvictsIdlePlayers() {
	_, _ = s.registry.Insert(s.ctx, "idle", "Idle", "🧚‍♀️")
	s.clock.Advance(4 * time.Minute)
	_, _ = s.registry.Insert(s.ctx, "fresh", "Fresh", "🧚‍♂️")
	s.clock.Advance(2 * time.Minute)

	batch, err := s.reaper.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(batch, 1)
	s.Equal(protocol.All(), batch[0].Target)
	s.Equal(protocol.EventPlayerDisconnected, batch[0].Event)
	s.Equal("idle", batch[0].Payload)

	_, ok, _ := s.registry.Get(s.ctx, "idle")
	s.False(ok)
	_, ok, _ = s.registry.Get(s.ctx, "fresh")
	s.True(ok)

	// A late move from the evicted connection is a no-op
	moved, err := s.registry.UpdatePosition(s.ctx, "idle", 1, 1)
	s.NoError(err)
	s.False(moved)
}

func (s *ReaperSuite) TestSweepKeepsPlayerAtExactTimeout() {
	_, _ = s.registry.Insert(s.ctx, "a", "Ann", "🧚‍♀️")
	s.clock.Advance(DefaultTimeout)

	batch, err := s.reaper.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Empty(batch)

	s.clock.Advance(time.Millisecond)
	batch, err = s.reaper.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Len(batch, 1)
}

func (s *ReaperSuite) TestMovementDefersEviction() {
	_, _ = s.registry.Insert(s.ctx, "a", "Ann", "🧚‍♀️")
	s.clock.Advance(4 * time.Minute)
	_, _ = s.registry.UpdatePosition(s.ctx, "a", 5, 5)
	s.clock.Advance(4 * time.Minute)

	batch, err := s.reaper.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Empty(batch)
}

func (s *ReaperSuite) TestSweepEmptyRegistry() {
	batch, err := s.reaper.Sweep(s.ctx)
	s.NoError(err)
	s.Empty(batch)
}

type countingSweeper struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSweeper) Sweep(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

func (c *countingSweeper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (s *ReaperSuite) TestRunSweepsOnEachTick() {
	ctx, cancel := context.WithCancel(s.ctx)
	sweeper := &countingSweeper{}
	done := make(chan struct{})

	go func() {
		s.reaper.Run(ctx, sweeper)
		close(done)
	}()

	s.Eventually(func() bool { return s.clock.TickerCount() == 1 }, time.Second, time.Millisecond)

	s.clock.Tick()
	s.clock.Tick()
	s.Eventually(func() bool { return sweeper.count() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("reaper did not stop after cancel")
	}
}
