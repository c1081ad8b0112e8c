package model

// Outcome describes what happened when a cascade was played.
type Outcome struct {
	Cascade CascadeKey
	// Reward is the last visited step's reward, which is what the
	// configuration posterior learns from.
	Reward           int
	ConvertedStep    int // -1 when no step converted
	ConvertedArm     int // -1 when no step converted
	StepsVisited     int
	RepeatedAttempts int
	RepeatedSuccess  int
}

// Suspension records an arm taken offline by a simulated bank failure.
type Suspension struct {
	Arm        int `json:"arm"`
	Constraint int `json:"constraint"` // stashed capacity restored later
	StartedAt  int `json:"started_at"`
	RestoreAt  int `json:"restore_at"`
}

// FailureEventType indicates the bank-failure transition.
type FailureEventType string

const (
	FailureSuspended FailureEventType = "SUSPENDED"
	FailureRestored  FailureEventType = "RESTORED"
)

// FailureEvent is the narrative of a bank-failure transition.
type FailureEvent struct {
	Type       FailureEventType
	Arm        int
	Iteration  int // cascade payment count at the transition
	Constraint int
	Message    string
}
