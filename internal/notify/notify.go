// Package notify delivers best-effort operator notifications. Delivery
// failures are logged and swallowed: notifications must never fail an
// ingestion call.
package notify

// Notifier receives human-readable event texts.
type Notifier interface {
	// IngestSummary reports a completed full-session ingestion run.
	IngestSummary(text string)
	// IngestFailure reports a failed ingestion call.
	IngestFailure(text string)
}

// Nop is a Notifier that discards everything.
type Nop struct{}

func (Nop) IngestSummary(string) {}
func (Nop) IngestFailure(string) {}
