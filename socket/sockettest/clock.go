package sockettest

import "time"

// Clock creates the timers that bound each wait.
type Clock interface {
	NewTimer(d time.Duration) Timer
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// RealClock returns a Clock backed by package time.
func RealClock() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) NewTimer(d time.Duration) Timer {
	return realTimer{time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) C() <-chan time.Time {
	return r.t.C
}

func (r realTimer) Stop() bool {
	return r.t.Stop()
}
