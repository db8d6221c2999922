package scheduler

import (
	"sync"
	"time"
)

// Key identifies one armed deadline
type Key struct {
	Turn       int
	Index      int
	Generation uint64
}

// TurnTimer keeps the single pending deadline of one room
type TurnTimer struct {
	clock    Clock
	timeout  time.Duration
	onExpire func(Key)

	mu       sync.Mutex
	pending  Timer
	current  Key
	armed    bool
	deadline time.Time
	closed   bool
}

// New creates a timer that calls onExpire with the armed key when a
// deadline passes without being re-armed or cancelled.
func New(clock Clock, timeout time.Duration, onExpire func(Key)) *TurnTimer {
	if clock == nil {
		clock = RealClock{}
	}
	return &TurnTimer{
		clock:    clock,
		timeout:  timeout,
		onExpire: onExpire,
	}
}

// Arm cancels any pending deadline and schedules a new one for the given
// turn and seat. A closed timer returns the zero key and time.
func (t *TurnTimer) Arm(turn, index int) (Key, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return Key{}, time.Time{}
	}
	t.stopLocked()

	key := Key{Turn: turn, Index: index, Generation: t.current.Generation + 1}
	t.current = key
	t.armed = true
	t.deadline = t.clock.Now().Add(t.timeout)
	t.pending = t.clock.AfterFunc(t.timeout, func() { t.fire(key) })
	return key, t.deadline
}

// Close cancels the pending deadline and refuses every later Arm
func (t *TurnTimer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.closed = true
}

// IsCurrent reports whether key is the deadline still armed
func (t *TurnTimer) IsCurrent(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed && !t.closed && key == t.current
}

// Deadline returns the armed deadline
func (t *TurnTimer) Deadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline, t.armed
}

func (t *TurnTimer) fire(key Key) {
	t.mu.Lock()
	if !t.armed || t.closed || key != t.current {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.mu.Unlock()

	// the owner re-checks IsCurrent after hopping to its own goroutine
	if t.onExpire != nil {
		t.onExpire(key)
	}
}

func (t *TurnTimer) stopLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.armed = false
	t.deadline = time.Time{}
}
