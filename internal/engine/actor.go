package engine

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"codeberg.org/sigterm-de/boopscript/internal/logging"
	"github.com/google/uuid"
)

type job struct {
	fullText  string
	selection *string
	kill      bool
	reply     chan outcome
}

type outcome struct {
	status *ExecutionStatus
	err    error
}

// worker is one spawned execution goroutine. It shares nothing with the
// Actor that started it, so an abandoned Actor can still be collected.
type worker struct {
	id   string
	jobs chan job
	done chan struct{}
	quit chan struct{}

	// killed is set before Kill asks the worker to exit, so senders that
	// find it gone retry on a fresh worker.
	killed  atomic.Bool
	cleanup runtime.Cleanup
}

// Actor serialises all access to a script's Host through a single goroutine.
// The goroutine and its Host are created on the first Execute and destroyed
// by Kill; the next Execute starts over with fresh top-level state.
type Actor struct {
	name   string
	source string
	opts   []HostOption

	mu sync.Mutex
	w  *worker
}

// NewActor returns an uninitialized actor for the given script.
func NewActor(name, source string, opts ...HostOption) *Actor {
	return &Actor{name: name, source: source, opts: opts}
}

// Ready reports whether the actor currently has a running worker.
func (a *Actor) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w != nil
}

// Execute runs main with the given buffer text and optional selection. It
// blocks until the worker accepts the request and replies. Calls from
// several goroutines are handled one at a time. A call still waiting when
// the actor is killed runs on the next worker.
func (a *Actor) Execute(fullText string, selection *string) (*ExecutionStatus, error) {
	reply := make(chan outcome, 1)
	var w *worker
	for w == nil {
		w = a.worker()
		select {
		case w.jobs <- job{fullText: fullText, selection: selection, reply: reply}:
		case <-w.done:
			if !w.killed.Load() {
				a.detach(w)
				return nil, ErrActorDisconnected
			}
			w = nil
		}
	}

	select {
	case out := <-reply:
		return out.status, out.err
	case <-w.done:
		select {
		case out := <-reply:
			return out.status, out.err
		default:
		}
		a.detach(w)
		return nil, ErrActorDisconnected
	}
}

// Kill stops the worker, waiting for an in-flight execution to finish.
// It is a no-op on an uninitialized actor.
func (a *Actor) Kill() {
	a.mu.Lock()
	w := a.w
	a.w = nil
	a.mu.Unlock()
	if w == nil {
		return
	}
	w.cleanup.Stop()
	w.killed.Store(true)

	select {
	case w.jobs <- job{kill: true}:
		<-w.done
	case <-w.done:
	}
	logging.Log(logging.DEBUG, a.name, fmt.Sprintf("actor %s killed", w.id))
}

// Close releases the actor's worker.
func (a *Actor) Close() { a.Kill() }

func (a *Actor) worker() *worker {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w != nil {
		return a.w
	}

	w := &worker{
		id:   uuid.NewString(),
		jobs: make(chan job),
		done: make(chan struct{}),
		quit: make(chan struct{}),
	}
	go w.run(a.name, a.source, a.opts)
	w.cleanup = runtime.AddCleanup(a, func(quit chan struct{}) { close(quit) }, w.quit)
	logging.Log(logging.DEBUG, a.name, fmt.Sprintf("actor %s spawned", w.id))

	a.w = w
	return w
}

// detach forgets w if it is still the current worker.
func (a *Actor) detach(w *worker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w == w {
		a.w = nil
		w.cleanup.Stop()
	}
}

func (w *worker) run(name, source string, opts []HostOption) {
	var host *Host
	defer close(w.done)
	defer func() {
		if host != nil {
			host.Close()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			logging.Log(logging.ERROR, name, fmt.Sprintf("actor %s panicked: %v", w.id, r))
		}
	}()

	for {
		select {
		case <-w.quit:
			return
		case j := <-w.jobs:
			if j.kill {
				return
			}
			if host == nil {
				h, err := NewHost(name, source, opts...)
				if err != nil {
					j.reply <- outcome{err: err}
					continue
				}
				host = h
			}
			status, err := host.Execute(j.fullText, j.selection)
			j.reply <- outcome{status: status, err: err}
		}
	}
}
