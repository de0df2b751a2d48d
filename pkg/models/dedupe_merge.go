package models

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
)

// DedupeMerge is the audit record of a merge decision. The contacts
// themselves are merged by the CRM.
type DedupeMerge struct {
	ID          string                         `json:"id" db:"id"`
	ContactID1  int64                          `json:"contact_id_1" db:"contact_id_1"`
	ContactID2  int64                          `json:"contact_id_2" db:"contact_id_2"`
	SurvivorID  int64                          `json:"survivor_id" db:"survivor_id"`
	CandidateID *string                        `json:"candidate_id,omitempty" db:"candidate_id"`
	Metadata    database.JSONB[map[string]any] `json:"metadata" db:"metadata"`
	PerformedBy *string                        `json:"performed_by,omitempty" db:"performed_by"`
	CreatedAt   time.Time                      `json:"created_at" db:"created_at"`
}

// LoserID returns the id of the contact absorbed into the survivor.
func (m *DedupeMerge) LoserID() int64 {
	if m.SurvivorID == m.ContactID1 {
		return m.ContactID2
	}
	return m.ContactID1
}

type MergeRequest struct {
	ContactID1  int64          `json:"contact_id_1" validate:"required,gt=0"`
	ContactID2  int64          `json:"contact_id_2" validate:"required,gt=0,nefield=ContactID1"`
	SurvivorID  int64          `json:"survivor_id" validate:"required,gt=0"`
	Metadata    map[string]any `json:"metadata"`
	PerformedBy string         `json:"performed_by"`
}
