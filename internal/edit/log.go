package edit

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// Defaults for the undo log.
const (
	DefaultMaxSize    = 100
	DefaultBatchDelay = 500 * time.Millisecond
)

// Log is a bounded linear undo log with debounced batching of consecutive
// text edits. Appending while the cursor is not at the end discards the redo
// tail; exceeding the maximum size drops the oldest entry.
type Log struct {
	mu      sync.Mutex
	actions []Action
	cursor  int // index of the next append; actions[:cursor] are undoable
	max     int

	batching bool
	pending  []Action
	debounce func(f func())
	gen      uint64 // bumped on every flush to invalidate stale timer fires
}

// NewLog creates an undo log holding at most max actions, auto-closing open
// batches after delay of inactivity.
func NewLog(max int, delay time.Duration) *Log {
	if max <= 0 {
		max = DefaultMaxSize
	}
	if delay <= 0 {
		delay = DefaultBatchDelay
	}
	return &Log{max: max, debounce: debounce.New(delay)}
}

// CanUndo reports whether an undo step is available.
func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor > 0 || len(l.pending) > 0
}

// CanRedo reports whether a redo step is available.
func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor < len(l.actions)
}

// Len returns the number of stored actions.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actions)
}

// Append records an action. Outside batch mode the action is stored
// directly. In batch mode text and focus changes accumulate in the pending
// batch, with adjacent text edits merged in place; any other action closes
// the batch first and is stored on its own.
func (l *Log) Append(a Action) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.batching {
		l.appendLocked(stripUser(a))
		return
	}

	switch act := a.(type) {
	case TextChange:
		if n := len(l.pending); n > 0 {
			if last, ok := l.pending[n-1].(TextChange); ok {
				if merged, ok := last.merge(act); ok {
					l.pending[n-1] = merged
					l.resetTimerLocked()
					return
				}
			}
		}
		l.pending = append(l.pending, act)
		l.resetTimerLocked()
	case FocusChange:
		l.pending = append(l.pending, act)
		l.resetTimerLocked()
	default:
		l.flushLocked()
		l.batching = false
		l.appendLocked(stripUser(a))
	}
}

// StartBatch opens batch mode. Opening a batch while one is already open is
// a programming error.
func (l *Log) StartBatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.batching {
		panic("edit: batch already open")
	}
	l.batching = true
}

// EndBatch closes batch mode, storing the pending actions as one entry.
// Closing without an open batch is a programming error.
func (l *Log) EndBatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.batching {
		panic("edit: no open batch")
	}
	l.flushLocked()
	l.batching = false
}

// Batching reports whether a batch is currently open.
func (l *Log) Batching() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batching
}

// Undo closes any open batch, moves the cursor back and returns the stored
// action whose inverse should be applied, or false at the log start.
func (l *Log) Undo() (Action, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.batching {
		l.flushLocked()
		l.batching = false
	}
	if l.cursor == 0 {
		return nil, false
	}
	l.cursor--
	return l.actions[l.cursor], true
}

// Redo closes any open batch, returns the action to re-apply and advances
// the cursor, or false at the log end.
func (l *Log) Redo() (Action, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.batching {
		l.flushLocked()
		l.batching = false
	}
	if l.cursor == len(l.actions) {
		return nil, false
	}
	a := l.actions[l.cursor]
	l.cursor++
	return a, true
}

// resetTimerLocked (re)schedules the debounced auto-close. A fire is ignored
// when a flush happened after it was scheduled.
func (l *Log) resetTimerLocked() {
	gen := l.gen
	l.debounce(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.batching && l.gen == gen {
			l.flushLocked()
			l.batching = false
		}
	})
}

// flushLocked stores the pending batch: a single leaf is stored as itself,
// several as one Batch entry.
func (l *Log) flushLocked() {
	l.gen++
	switch len(l.pending) {
	case 0:
	case 1:
		l.appendLocked(stripUser(l.pending[0]))
	default:
		l.appendLocked(stripUser(Batch{Actions: l.pending}))
	}
	l.pending = nil
}

func (l *Log) appendLocked(a Action) {
	l.actions = append(l.actions[:l.cursor], a)
	if len(l.actions) > l.max {
		l.actions = l.actions[1:]
	}
	l.cursor = len(l.actions)
}
