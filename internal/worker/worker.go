// Package worker provides the halt-and-join idiom shared by every
// long-running component in this repository (fount acceptors, session
// readers, crypto workers, the supervisor's periodic timer).
package worker

import "sync"

// Worker is an embeddable helper that manages a set of goroutines that
// should all be signaled to stop, and waited on, together.
type Worker struct {
	sync.WaitGroup

	haltOnce sync.Once
	haltCh   chan struct{}
	initOnce sync.Once
}

func (w *Worker) init() {
	w.initOnce.Do(func() {
		w.haltCh = make(chan struct{})
	})
}

// HaltCh returns the channel that is closed when Halt is called.
func (w *Worker) HaltCh() chan struct{} {
	w.init()
	return w.haltCh
}

// Go spawns fn as a goroutine tracked by the Worker's WaitGroup.
func (w *Worker) Go(fn func()) {
	w.init()
	w.Add(1)
	go func() {
		defer w.Done()
		fn()
	}()
}

// Halt closes the halt channel exactly once and waits for every
// goroutine started via Go to return.
func (w *Worker) Halt() {
	w.init()
	w.haltOnce.Do(func() { close(w.haltCh) })
	w.Wait()
}
