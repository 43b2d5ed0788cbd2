package edit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/notekeep/notekeep/internal/repository"
)

// Manager hands out edit sessions, at most one per note. Reopening a note
// whose previous session is still closing waits for that close to finish,
// so a pending save always lands before the note is read again.
type Manager struct {
	notes  repository.NoteRepository
	labels repository.LabelRepository
	prefs  Prefs
	cfg    SessionConfig
	log    *zap.Logger

	mu   sync.Mutex
	open map[int64]*openSession
}

type openSession struct {
	sess *Session
	done chan struct{} // closed when the session has fully closed
}

// NewManager creates a session manager over the given stores.
func NewManager(notes repository.NoteRepository, labels repository.LabelRepository, prefs Prefs, cfg SessionConfig, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		notes:  notes,
		labels: labels,
		prefs:  prefs,
		cfg:    cfg,
		log:    log,
		open:   make(map[int64]*openSession),
	}
}

// Open creates and opens a session for the note. If the same note is still
// being closed, Open joins the close first.
func (m *Manager) Open(ctx context.Context, noteID int64) (*Session, error) {
	if noteID != 0 {
		m.mu.Lock()
		prev := m.open[noteID]
		m.mu.Unlock()
		if prev != nil {
			select {
			case <-prev.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	sess, err := NewSession(m.notes, m.labels, m.prefs, m.cfg)
	if err != nil {
		return nil, err
	}
	if err := sess.Open(ctx, noteID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.open[sess.note.ID] = &openSession{sess: sess, done: make(chan struct{})}
	m.mu.Unlock()

	m.log.Debug("session opened",
		zap.String("session", sess.ID.String()),
		zap.Int64("note", sess.note.ID),
	)
	return sess, nil
}

// Close finalizes the session (save-if-dirty, blank-note discard) and
// releases its note for reopening. The close runs to completion even when
// the caller's context is already canceled.
func (m *Manager) Close(ctx context.Context, sess *Session) error {
	err := sess.Close(ctx)

	m.mu.Lock()
	if entry, ok := m.open[sess.note.ID]; ok && entry.sess == sess {
		delete(m.open, sess.note.ID)
		close(entry.done)
	}
	m.mu.Unlock()

	m.log.Debug("session closed",
		zap.String("session", sess.ID.String()),
		zap.Int64("note", sess.note.ID),
		zap.Error(err),
	)
	return err
}
