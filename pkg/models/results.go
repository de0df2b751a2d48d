package models

// ItemError records one failed item of a batch pass.
type ItemError struct {
	ContactID  int64  `json:"contact_id,omitempty"`
	ContactID1 int64  `json:"contact_id_1,omitempty"`
	ContactID2 int64  `json:"contact_id_2,omitempty"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

type NormalizeResult struct {
	ProcessedCount int         `json:"processed_count"`
	LastID         int64       `json:"last_id"`
	Done           bool        `json:"done"`
	Errors         []ItemError `json:"errors"`
}

type ScoringResult struct {
	Requested    int         `json:"requested"`
	Scored       int         `json:"scored"`
	Upserted     int         `json:"upserted"`
	Skipped      int         `json:"skipped"`
	AutoApproved int         `json:"auto_approved"`
	Errors       []ItemError `json:"errors"`
}
