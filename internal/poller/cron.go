package poller

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// backfillSchedule tracks the next fire time of a cron expression. The poll
// loop drives it by calling due on every tick; the schedule fires at most
// once per window regardless of how many ticks land after the deadline.
type backfillSchedule struct {
	sched cron.Schedule
	next  time.Time
}

func newBackfillSchedule(expr string, from time.Time) (*backfillSchedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("poller: parse backfill cron %q: %w", expr, err)
	}
	return &backfillSchedule{sched: sched, next: sched.Next(from)}, nil
}

// due reports whether the schedule has fired since the last call and advances
// the deadline past now.
func (b *backfillSchedule) due(now time.Time) bool {
	if now.Before(b.next) {
		return false
	}
	b.next = b.sched.Next(now)
	return true
}
