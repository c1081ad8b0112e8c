package model

// ArmSnapshot is the read-only view of one arm.
type ArmSnapshot struct {
	Index         int       `json:"index"`
	PrimaryProba  float64   `json:"primary_proba"`
	RepeatedProba float64   `json:"repeated_proba"`
	Constraint    int       `json:"constraint"`
	Primary       Posterior `json:"primary"`
	Repeated      Posterior `json:"repeated"`
}

// CascadeSnapshot is the read-only view of one registered configuration.
type CascadeSnapshot struct {
	Key    CascadeKey   `json:"key"`
	Stats  CascadeStats `json:"stats"`
	Active bool         `json:"active"`
}

// Snapshot is a deep copy of everything the reporting side may look at.
type Snapshot struct {
	Arms       []ArmSnapshot     `json:"arms"`
	Active     []CascadeKey      `json:"active"`
	Historical []CascadeSnapshot `json:"historical"`
	Top        []CascadeKey      `json:"top"`
	Counters   Counters          `json:"counters"`
	Suspension *Suspension       `json:"suspension,omitempty"`
}
