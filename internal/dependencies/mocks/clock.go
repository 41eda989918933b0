package mocks

import (
	"sync"
	"time"

	"github.com/mcoot/islandrelay/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing
// Tickers created from it only fire when Tick is called
type MockClock struct {
	mu          sync.Mutex
	currentTime time.Time
	tickers     []*MockTicker
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// Advance moves the clock forward by the given duration
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = c.currentTime.Add(d)
}

// Set sets the clock to the given time
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = t
}

// NewTicker returns a manually driven ticker
func (c *MockClock) NewTicker(d time.Duration) clock.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &MockTicker{Interval: d, ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

// Tick fires every live ticker once with the current time
// Blocks until each live ticker's consumer has received the tick
func (c *MockClock) Tick() {
	c.mu.Lock()
	now := c.currentTime
	tickers := make([]*MockTicker, len(c.tickers))
	copy(tickers, c.tickers)
	c.mu.Unlock()

	for _, t := range tickers {
		if !t.stopped() {
			t.ch <- now
		}
	}
}

// TickerCount returns how many tickers have been created
func (c *MockClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// MockTicker is a ticker driven by MockClock.Tick
type MockTicker struct {
	Interval time.Duration

	mu     sync.Mutex
	ch     chan time.Time
	isDone bool
}

// C returns the tick channel
func (t *MockTicker) C() <-chan time.Time {
	return t.ch
}

// Stop stops future ticks
func (t *MockTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isDone = true
}

func (t *MockTicker) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isDone
}
