package models

import (
	"math"
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
)

type CandidateStatus string

const (
	CandidateStatusPending  CandidateStatus = "pending"
	CandidateStatusApproved CandidateStatus = "approved"
	CandidateStatusRejected CandidateStatus = "rejected"
)

func (s CandidateStatus) IsValid() bool {
	switch s {
	case CandidateStatusPending, CandidateStatusApproved, CandidateStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether s can only be reached by reviewer action or an
// auto-approving score.
func (s CandidateStatus) IsTerminal() bool {
	return s == CandidateStatusApproved || s == CandidateStatusRejected
}

// Reason codes
const (
	ReasonNameExact = "name_exact"
	ReasonForcePair = "force-pair"
	ReasonAutoScore = "auto_score"
)

// ScoreComponents are the per-field similarities behind a composite score.
type ScoreComponents struct {
	EmailSim       float64 `json:"email_sim"`
	PhoneEqual     float64 `json:"phone_equal"`
	NameSim        float64 `json:"name_sim"`
	CompanySim     float64 `json:"company_sim"`
	AddressSim     float64 `json:"address_sim"`
	MetaphoneMatch bool    `json:"metaphone_match"`
	NameExact      bool    `json:"name_exact"`
}

// DedupeCandidate asserts that two contacts may be duplicates. ContactID1 is
// always the smaller id.
type DedupeCandidate struct {
	ID         string                          `json:"id" db:"id"`
	ContactID1 int64                           `json:"contact_id_1" db:"contact_id_1"`
	ContactID2 int64                           `json:"contact_id_2" db:"contact_id_2"`
	Score      float64                         `json:"score" db:"score"`
	Reason     string                          `json:"reason" db:"reason"`
	Status     CandidateStatus                 `json:"status" db:"status"`
	Components database.JSONB[ScoreComponents] `json:"components" db:"components"`
	CreatedAt  time.Time                       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time                       `json:"updated_at" db:"updated_at"`
	ResolvedAt *time.Time                      `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy *string                         `json:"resolved_by,omitempty" db:"resolved_by"`
}

// Pair returns the canonical pair of the candidate.
func (c *DedupeCandidate) Pair() ContactPair {
	return NewContactPair(c.ContactID1, c.ContactID2)
}

// ContactPair is an unordered pair of contact ids held in canonical order.
type ContactPair struct {
	ContactID1 int64 `json:"contact_id_1"`
	ContactID2 int64 `json:"contact_id_2"`
}

// NewContactPair orders the ids so that (5, 9) and (9, 5) are the same pair.
func NewContactPair(a, b int64) ContactPair {
	if a > b {
		a, b = b, a
	}
	return ContactPair{ContactID1: a, ContactID2: b}
}

func (p ContactPair) Contains(id int64) bool {
	return p.ContactID1 == id || p.ContactID2 == id
}

// CandidateFilter narrows a candidate listing. Zero values mean "any".
type CandidateFilter struct {
	Status    CandidateStatus `query:"status" validate:"omitempty,oneof=pending approved rejected"`
	MinScore  *float64        `query:"min_score" validate:"omitempty,gte=0,lte=1"`
	ContactID int64           `query:"contact_id" validate:"gte=0"`
	Limit     int             `query:"limit" validate:"gte=0"`
}

// ClampScore bounds a score to [0,1] and rounds it to 4 decimals. NaN maps to 0.
func ClampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return math.Round(score*10000) / 10000
}
