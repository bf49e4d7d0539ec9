package souvenir

import (
	"context"
	"log"
	"time"

	"github.com/tmercier/souvenir/internal/notify"
)

// ReminderScanner periodically checks for tasks whose due time falls inside
// the lead window and hands them to a notifier. Each task is alerted once
// per process lifetime.
type ReminderScanner struct {
	engine   *Engine
	notifier notify.Notifier
	interval time.Duration
	lead     time.Duration

	reminded map[int64]bool
	done     chan struct{}
}

func NewReminderScanner(engine *Engine, notifier notify.Notifier, interval, lead time.Duration) *ReminderScanner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lead < 0 {
		lead = 0
	}
	return &ReminderScanner{
		engine:   engine,
		notifier: notifier,
		interval: interval,
		lead:     lead,
		reminded: make(map[int64]bool),
		done:     make(chan struct{}),
	}
}

// Start launches the scan loop. It scans immediately, then on each tick.
func (s *ReminderScanner) Start(ctx context.Context) {
	go s.loop(ctx)
	log.Printf("reminders: started (interval=%s, lead=%s)", s.interval, s.lead)
}

// Stop signals the scan loop to exit.
func (s *ReminderScanner) Stop() {
	close(s.done)
	log.Printf("reminders: stopped")
}

func (s *ReminderScanner) loop(ctx context.Context) {
	s.scan(time.Now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case now := <-ticker.C:
			s.scan(now)
		}
	}
}

// scan runs a single due-task check. Split out for tests.
func (s *ReminderScanner) scan(now time.Time) {
	due, err := s.engine.Store().QueryDue(now.Unix(), int64(s.lead.Seconds()))
	if err != nil {
		log.Printf("reminders: query due tasks: %v", err)
		return
	}

	fresh := due[:0:0]
	for _, t := range due {
		if s.reminded[t.ID] {
			continue
		}
		s.reminded[t.ID] = true
		fresh = append(fresh, t)
	}
	if len(fresh) == 0 {
		return
	}

	if err := s.notifier.NotifyDue(fresh); err != nil {
		log.Printf("reminders: notify: %v", err)
	}
}
