package domain

import "time"

// GenerationType enumerates supported generation categories.
type GenerationType string

const (
	GenerationTypeImage GenerationType = "image"
	GenerationTypeVideo GenerationType = "video"
)

// GenerationStatus enumerates generation lifecycle states.
type GenerationStatus string

const (
	GenerationStatusPending    GenerationStatus = "pending"
	GenerationStatusGenerating GenerationStatus = "generating"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// Terminal reports whether the status is absorbing. Once a generation reaches
// a terminal status it never transitions again.
func (s GenerationStatus) Terminal() bool {
	return s == GenerationStatusCompleted || s == GenerationStatusFailed
}

// rank orders statuses for monotonicity checks. Both terminal states share the
// highest rank.
func (s GenerationStatus) rank() int {
	switch s {
	case GenerationStatusPending:
		return 0
	case GenerationStatusGenerating:
		return 1
	case GenerationStatusCompleted, GenerationStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next is a legal status
// transition. Re-entrant transitions are allowed but are no-ops for callers.
func (s GenerationStatus) CanTransition(next GenerationStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// Generation is the durable job entity tracking one generation request
// through its state machine. It is created in pending at submission and
// mutated only by the orchestrator's resolution routine.
type Generation struct {
	ID             string
	UserID         string
	Type           GenerationType
	Prompt         string
	Parameters     []byte
	Provider       string
	Model          string
	Status         GenerationStatus
	FileIDs        []string
	ErrorMessage   string
	GenerationTime time.Duration
	Cost           float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
