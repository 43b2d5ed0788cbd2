// Package reminder computes reminder trigger times and keeps the alarm
// backend in sync with the stored reminder state.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/notekeep/notekeep/internal/model"
	"github.com/notekeep/notekeep/internal/repository"
)

// Scheduler keeps alarms consistent with reminder state.
type Scheduler interface {
	// Set schedules (or reschedules) the alarm for one note's reminder.
	Set(ctx context.Context, noteID int64, rem *model.Reminder) error
	// Cancel removes the alarm for a note.
	Cancel(ctx context.Context, noteID int64) error
	// RecomputeAll rebuilds every alarm from the stored reminder state,
	// used after an import rewrites reminders wholesale.
	RecomputeAll(ctx context.Context) error
}

// Alarm is the platform alarm backend the scheduler drives.
type Alarm interface {
	Schedule(noteID int64, at time.Time)
	Cancel(noteID int64)
}

// ValidateRecurrence checks an RRULE string.
func ValidateRecurrence(rule string) error {
	if rule == "" {
		return nil
	}
	if _, err := rrule.StrToRRule(rule); err != nil {
		return fmt.Errorf("recurrence: %w", err)
	}
	return nil
}

// NextTrigger returns the first trigger time strictly after now, or false
// when the reminder has no further occurrence.
func NextTrigger(rem model.Reminder, now time.Time) (time.Time, bool) {
	if rem.Recurrence == "" {
		if rem.Done || !rem.Start.After(now) {
			return time.Time{}, false
		}
		return rem.Start, true
	}
	r, err := rrule.StrToRRule(rem.Recurrence)
	if err != nil {
		return time.Time{}, false
	}
	r.DTStart(rem.Start)
	if rem.Start.After(now) {
		return rem.Start, true
	}
	next := r.After(now, false)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// MarkTriggered advances a reminder past a fired occurrence: the count
// increments, Next moves to the following occurrence and one-shot reminders
// become done.
func MarkTriggered(rem model.Reminder, now time.Time) model.Reminder {
	rem.Count++
	next, ok := NextTrigger(rem, now)
	if !ok {
		rem.Done = true
		rem.Next = rem.Start
		return rem
	}
	rem.Next = next
	return rem
}

// AlarmScheduler implements Scheduler over a note store and an alarm backend.
type AlarmScheduler struct {
	notes repository.NoteRepository
	alarm Alarm
	clock func() time.Time
	log   *zap.Logger
}

// NewAlarmScheduler constructs a scheduler. A nil clock means time.Now.
func NewAlarmScheduler(notes repository.NoteRepository, alarm Alarm, clock func() time.Time, log *zap.Logger) *AlarmScheduler {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AlarmScheduler{notes: notes, alarm: alarm, clock: clock, log: log}
}

// Set schedules the next occurrence of a reminder, cancelling any stale alarm
// when none remains.
func (s *AlarmScheduler) Set(ctx context.Context, noteID int64, rem *model.Reminder) error {
	if rem == nil {
		return s.Cancel(ctx, noteID)
	}
	next, ok := NextTrigger(*rem, s.clock())
	if !ok {
		s.alarm.Cancel(noteID)
		return nil
	}
	s.alarm.Schedule(noteID, next)
	return nil
}

// Cancel removes the alarm for a note.
func (s *AlarmScheduler) Cancel(_ context.Context, noteID int64) error {
	s.alarm.Cancel(noteID)
	return nil
}

// RecomputeAll rebuilds alarms for every note carrying a reminder.
func (s *AlarmScheduler) RecomputeAll(ctx context.Context) error {
	notes, err := s.notes.GetWithReminder(ctx)
	if err != nil {
		return fmt.Errorf("recompute alarms: %w", err)
	}
	now := s.clock()
	scheduled := 0
	for _, n := range notes {
		if n.Reminder == nil {
			continue
		}
		next, ok := NextTrigger(*n.Reminder, now)
		if !ok {
			s.alarm.Cancel(n.ID)
			continue
		}
		s.alarm.Schedule(n.ID, next)
		scheduled++
	}
	s.log.Info("alarms recomputed", zap.Int("scheduled", scheduled), zap.Int("total", len(notes)))
	return nil
}
