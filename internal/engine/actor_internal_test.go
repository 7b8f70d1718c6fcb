package engine

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deadWorker() *worker {
	w := &worker{
		id:   "dead",
		jobs: make(chan job),
		done: make(chan struct{}),
		quit: make(chan struct{}),
	}
	close(w.done)
	return w
}

func TestActorDisconnectedWorker(t *testing.T) {
	a := NewActor("counter", `var n = 0; function main(state) { n++; state.text = String(n); }`)
	t.Cleanup(a.Close)
	a.w = deadWorker()

	_, err := a.Execute("x", nil)
	require.ErrorIs(t, err, ErrActorDisconnected)
	assert.False(t, a.Ready())

	status, err := a.Execute("x", nil)
	require.NoError(t, err)
	assert.Equal(t, "1", status.Replacement().Text)
}

func TestActorKillDeadWorker(t *testing.T) {
	a := NewActor("noop", `function main(state) {}`)
	a.w = deadWorker()

	a.Kill()
	assert.False(t, a.Ready())
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestActorWorkerStopsWhenActorIsCollected(t *testing.T) {
	done := func() <-chan struct{} {
		a := NewActor("dropped", `function main(state) {}`)
		_, err := a.Execute("x", nil)
		require.NoError(t, err)
		return a.w.done
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return isClosed(done)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestActorKillStopsCleanup(t *testing.T) {
	quit := func() <-chan struct{} {
		a := NewActor("killed", `function main(state) {}`)
		_, err := a.Execute("x", nil)
		require.NoError(t, err)
		w := a.w
		a.Kill()
		return w.quit
	}()

	assert.Never(t, func() bool {
		runtime.GC()
		return isClosed(quit)
	}, 300*time.Millisecond, 10*time.Millisecond)
}

func TestActorPendingCallSurvivesKill(t *testing.T) {
	a := NewActor("counter", `var n = 0; function main(state) { n++; state.text = String(n); }`)
	t.Cleanup(a.Close)

	// A worker that never accepts jobs keeps the call below waiting.
	stuck := &worker{
		id:   "stuck",
		jobs: make(chan job),
		done: make(chan struct{}),
		quit: make(chan struct{}),
	}
	a.w = stuck

	type result struct {
		status *ExecutionStatus
		err    error
	}
	results := make(chan result, 1)
	go func() {
		status, err := a.Execute("x", nil)
		results <- result{status, err}
	}()
	time.Sleep(20 * time.Millisecond)

	a.mu.Lock()
	a.w = nil
	a.mu.Unlock()
	stuck.killed.Store(true)
	close(stuck.done)

	select {
	case r := <-results:
		require.NoError(t, r.err)
		assert.Equal(t, "1", r.status.Replacement().Text)
	case <-time.After(5 * time.Second):
		t.Fatal("pending call did not finish")
	}
}

func TestNotification(t *testing.T) {
	ex := &JSException{Message: "boom", Position: &ExceptionPosition{Resource: "s.js", Line: 3, StartColumn: 2, EndColumn: 3}}

	assert.Equal(t, "", Notification(nil))
	assert.Equal(t, "Error executing script: s.js:3:2: boom", Notification(&ExecuteError{Exception: ex}))
	assert.Equal(t, "Error compiling script: boom", Notification(&CompileError{Exception: &JSException{Message: "boom"}}))
	assert.Equal(t, "Script has no main function", Notification(ErrNoMain))
	assert.Equal(t, "Script runtime stopped unexpectedly, try again", Notification(ErrActorDisconnected))
}
