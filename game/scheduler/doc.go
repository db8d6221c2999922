// Package scheduler provides the per-room turn deadline timer.
//
// A TurnTimer holds at most one armed deadline. Every call to Arm cancels
// the previous deadline and bumps a generation counter, so an expiry that
// races with a newer Arm is recognised as stale and dropped. Time comes from
// a Clock: RealClock in production, ManualClock in tests.
//
// Usage:
//
//	timer := scheduler.New(scheduler.RealClock{}, 30*time.Second, func(k scheduler.Key) {
//		room.post(func() { room.expire(k) })
//	})
//
//	key, deadline := timer.Arm(turnNumber, currentIndex)
//
// The expiry callback runs on the clock's goroutine. It must not block and
// should hand the key back to the owner of the game state, which checks
// IsCurrent before acting.
package scheduler
