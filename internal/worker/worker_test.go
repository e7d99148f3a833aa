package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGoRunsAndHaltWaits(t *testing.T) {
	var w Worker
	started := make(chan struct{})
	finished := make(chan struct{})

	w.Go(func() {
		close(started)
		<-w.HaltCh()
		close(finished)
	})

	<-started
	select {
	case <-finished:
		t.Fatal("goroutine exited before Halt")
	default:
	}

	w.Halt()

	select {
	case <-finished:
	default:
		t.Fatal("Halt must not return until every goroutine has exited")
	}
}

func TestHaltIsIdempotent(t *testing.T) {
	var w Worker
	w.Go(func() { <-w.HaltCh() })

	done := make(chan struct{})
	go func() {
		w.Halt()
		w.Halt()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("calling Halt twice must not deadlock")
	}
}

func TestHaltChStableAcrossCalls(t *testing.T) {
	var w Worker
	require.Equal(t, w.HaltCh(), w.HaltCh())
}
