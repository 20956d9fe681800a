package session

import (
	"sync"
	"time"
)

// Delays before the callback view navigates away on its own.
const (
	SuccessDelay = 2000 * time.Millisecond
	FailureDelay = 3000 * time.Millisecond
)

// In-app view targets.
const (
	LandingView   = "/"
	DashboardView = "/dashboard"
)

// Navigator performs a navigation to target, which is either an absolute
// external URL or an in-app view path.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(target string)

// Navigate calls f(target).
func (f NavigatorFunc) Navigate(target string) { f(target) }

// scheduleFunc runs f after d and returns a function that stops it, reporting
// whether it was stopped before running. time.AfterFunc in production.
type scheduleFunc func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Navigation is an armed, delayed navigation. The view that receives it owns
// it and must Cancel it on teardown.
type Navigation struct {
	target string
	delay  time.Duration

	mu       sync.Mutex
	stop     func() bool
	fired    bool
	canceled bool
	done     chan struct{}
}

func arm(schedule scheduleFunc, nav Navigator, target string, delay time.Duration) *Navigation {
	n := &Navigation{
		target: target,
		delay:  delay,
		done:   make(chan struct{}),
	}

	stop := schedule(delay, func() {
		n.mu.Lock()
		if n.canceled || n.fired {
			n.mu.Unlock()
			return
		}

		n.fired = true
		close(n.done)
		n.mu.Unlock()

		nav.Navigate(target)
	})

	n.mu.Lock()
	n.stop = stop
	n.mu.Unlock()

	return n
}

// Target is where the navigation goes.
func (n *Navigation) Target() string { return n.target }

// Delay is how long after arming the navigation fires.
func (n *Navigation) Delay() time.Duration { return n.delay }

// Cancel disarms the navigation. It reports true if the navigation had not
// fired yet. Safe to call more than once and on a nil Navigation.
func (n *Navigation) Cancel() bool {
	if n == nil {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fired || n.canceled {
		return false
	}

	n.canceled = true
	close(n.done)

	if n.stop != nil {
		n.stop()
	}

	return true
}

// Fired reports whether the navigation has been performed.
func (n *Navigation) Fired() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.fired
}

// Done is closed once the navigation fires or is canceled.
func (n *Navigation) Done() <-chan struct{} { return n.done }
