package reconciliation

// Source identifies which adapter delivered a reconciliation event.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePoll    Source = "poll"
	SourceManual  Source = "manual"
	SourceSweep   Source = "sweep"
	SourceAdmin   Source = "admin"
)

// Outcome summarizes what a reconciliation attempt did.
type Outcome string

const (
	OutcomeTransitioned  Outcome = "transitioned"
	OutcomeNoop          Outcome = "noop"
	OutcomeLostRace      Outcome = "lost_race"
	OutcomeUnresolved    Outcome = "unresolved"
	OutcomeIgnoredStatus Outcome = "ignored_status"
	OutcomeError         Outcome = "error"
)
