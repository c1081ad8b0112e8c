package model

// Counters aggregates payment attempts and successes at every granularity.
// Repeated and cascade payments also count toward the overall totals.
type Counters struct {
	Payments int `json:"payments"`
	Success  int `json:"success"`

	PrimaryPayments int `json:"primary_payments"`
	PrimarySuccess  int `json:"primary_success"`

	RepeatedPayments int `json:"repeated_payments"`
	RepeatedSuccess  int `json:"repeated_success"`

	CascadePayments int `json:"cascade_payments"`
	CascadeSuccess  int `json:"cascade_success"`
}
