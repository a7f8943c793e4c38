package monitor

import (
	"time"

	"wifiwatchdog/internal/models"
)

// tracker owns the failure streak and the recovery session. It is mutated
// only by the controller goroutine.
type tracker struct {
	kind  models.State
	count int

	sessionOpen  bool
	sessionStart time.Time
}

// fail records a failing observation and returns the new streak length. A
// change of failure kind restarts the streak at 1.
func (t *tracker) fail(state models.State) int {
	if t.count > 0 && t.kind == state {
		t.count++
	} else {
		t.kind = state
		t.count = 1
	}
	return t.count
}

// open starts a recovery session at now unless one is already open. It
// reports whether a new session was started.
func (t *tracker) open(now time.Time) bool {
	if t.sessionOpen {
		return false
	}
	t.sessionOpen = true
	t.sessionStart = now
	return true
}

// healthy clears the streak and closes any open session, returning its
// duration.
func (t *tracker) healthy(now time.Time) (time.Duration, bool) {
	t.kind = ""
	t.count = 0
	if !t.sessionOpen {
		return 0, false
	}
	t.sessionOpen = false
	d := now.Sub(t.sessionStart)
	if d < 0 {
		d = 0
	}
	return d, true
}

// streak returns the current failure kind and count; the count is zero
// while healthy.
func (t *tracker) streak() (models.State, int) {
	return t.kind, t.count
}

// session returns the start of the open recovery session.
func (t *tracker) session() (time.Time, bool) {
	return t.sessionStart, t.sessionOpen
}
