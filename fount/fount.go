// Package fount implements the Connection Fount (spec §4.5): one
// acceptor goroutine per configured listen address, feeding a single
// shared channel of accepted connections that the Link Session
// Dispatcher drains.
//
// Grounded on mixmasala-server/server.go's newListener/worker pattern:
// one listener goroutine per configured address, logging and exiting
// alone on Accept error rather than tearing down its siblings.
package fount

import (
	"net"

	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/katzenpost/minion/internal/worker"
)

// Fount owns one acceptor per configured address and the channel they
// all feed.
type Fount struct {
	worker.Worker

	log   *logging.Logger
	conns chan net.Conn

	listeners []net.Listener
}

// New starts an acceptor goroutine for each addr in addrs, binding a
// net.Listener synchronously so that New returns a configuration error
// immediately rather than surfacing it asynchronously.
func New(log *logging.Logger, addrs []string, backlog int) (*Fount, error) {
	f := &Fount{
		log:   log,
		conns: make(chan net.Conn, backlog),
	}

	for _, addr := range addrs {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			f.closeListeners()
			return nil, err
		}
		f.listeners = append(f.listeners, ln)
	}

	for _, ln := range f.listeners {
		ln := ln
		f.Go(func() { f.acceptLoop(ln) })
	}
	f.Go(f.haltListeners)

	return f, nil
}

// Conns is the shared channel of accepted connections consumed by the
// Link Session Dispatcher.
func (f *Fount) Conns() <-chan net.Conn {
	return f.conns
}

// Addrs returns the bound address of each listener, in the order
// passed to New. Useful when New was given a "host:0" address and the
// OS picked the port.
func (f *Fount) Addrs() []string {
	addrs := make([]string, len(f.listeners))
	for i, ln := range f.listeners {
		addrs[i] = ln.Addr().String()
	}
	return addrs
}

func (f *Fount) acceptLoop(ln net.Listener) {
	addr := ln.Addr().String()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-f.HaltCh():
				return
			default:
			}
			f.log.Errorf("fount: acceptor for %s exiting: %s", addr, err)
			return
		}

		select {
		case f.conns <- conn:
		case <-f.HaltCh():
			conn.Close()
			return
		}
	}
}

// haltListeners closes every listener as soon as Halt is called, which
// unblocks each acceptLoop's pending Accept.
func (f *Fount) haltListeners() {
	<-f.HaltCh()
	f.closeListeners()
}

func (f *Fount) closeListeners() {
	for _, ln := range f.listeners {
		ln.Close()
	}
}
