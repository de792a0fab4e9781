package model

import "time"

// Outcome is the closed set of ways a decompiler invocation can end.
type Outcome int

const (
	// OutcomeCompleted means the process exited on its own; ExitCode says how.
	OutcomeCompleted Outcome = iota
	OutcomeTimedOut
	OutcomeOutputLimit
	OutcomeNotFound
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeOutputLimit:
		return "output_limit"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InvocationResult is what one run of the decompiler produced.
// Stderr is advisory only. Detail explains OutcomeFailed and OutcomeNotFound.
type InvocationResult struct {
	Outcome  Outcome
	Stdout   string
	Stderr   string
	ExitCode int
	Detail   string
	Duration time.Duration
}

// InvocationRecord is the audit row written for every pipeline run when the
// audit log is enabled. The payload itself is never stored, only its digest.
type InvocationRecord struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"request_id"`
	PayloadSize   int64     `json:"payload_size"`
	PayloadSHA256 string    `json:"payload_sha256"`
	Encoding      string    `json:"encoding"`
	Dialect       string    `json:"dialect"`
	Outcome       string    `json:"outcome"`
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}
