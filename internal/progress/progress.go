// Package progress schedules interim status messages around slow backend
// dispatches.
//
// All ticks are armed up front when a session starts; cancelling the session
// the moment the dispatch settles stops every still-pending tick. A tick that
// races cancellation loses: the cancelled flag is checked under the session
// lock before anything is sent.
package progress

import (
	"log/slog"
	"sync"
	"time"
)

// Step is one scheduled status message.
type Step struct {
	After time.Duration
	Text  string
}

// DefaultSchedule escalates from informational through reassurance to a
// warning that something may be wrong.
var DefaultSchedule = []Step{
	{After: 30 * time.Second, Text: "🔍 Analyzing market trends for your personalized strategy..."},
	{After: 60 * time.Second, Text: "⏳ Still working on it! Deep analysis takes a little longer."},
	{After: 120 * time.Second, Text: "🧠 Crunching the numbers — your strategy is almost ready. Thanks for your patience!"},
	{After: 300 * time.Second, Text: "⚠️ This is taking much longer than usual. If you don't hear back soon, something may have gone wrong — please try again."},
}

// Notifier starts progress sessions over a fixed schedule.
type Notifier struct {
	schedule []Step
}

// NewNotifier creates a Notifier with the given schedule. A nil schedule uses
// DefaultSchedule.
func NewNotifier(schedule []Step) *Notifier {
	if schedule == nil {
		schedule = DefaultSchedule
	}
	return &Notifier{schedule: schedule}
}

// Session is one in-flight set of scheduled ticks.
type Session struct {
	mu        sync.Mutex
	cancelled bool
	timers    []*time.Timer
	delivered int
}

// Start arms every step's timer and returns the session handle. onTick is
// invoked with the step text each time a timer fires before cancellation.
func (n *Notifier) Start(onTick func(text string)) *Session {
	s := &Session{}
	s.timers = make([]*time.Timer, 0, len(n.schedule))
	for _, step := range n.schedule {
		step := step // pre-1.22 loop variable capture
		s.timers = append(s.timers, time.AfterFunc(step.After, func() {
			s.mu.Lock()
			if s.cancelled {
				s.mu.Unlock()
				return
			}
			s.delivered++
			s.mu.Unlock()
			slog.Debug("progress tick fired", "after", step.After)
			onTick(step.Text)
		}))
	}
	return s
}

// Cancel marks the session cancelled and stops every pending timer. Safe to
// call more than once; already-cancelled wins any race with a firing timer.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}

// Delivered reports how many ticks fired before cancellation.
func (s *Session) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}
