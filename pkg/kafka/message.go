package kafka

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// PairRequest asks for a contact pair to be (re)scored. Ids may be sent as
// JSON numbers or numeric strings.
type PairRequest struct {
	ContactID1  json.RawMessage `json:"contact_id_1"`
	ContactID2  json.RawMessage `json:"contact_id_2"`
	RequestedBy string          `json:"requested_by,omitempty"`
}

// DecodePairRequest parses a pair request message value. The pair itself is
// not validated beyond the ids being integers.
func DecodePairRequest(value []byte) (models.ContactPair, error) {
	var req PairRequest
	if err := json.Unmarshal(value, &req); err != nil {
		return models.ContactPair{}, fmt.Errorf("invalid pair request: %w", err)
	}

	id1, err := decodeID(req.ContactID1)
	if err != nil {
		return models.ContactPair{}, fmt.Errorf("invalid contact_id_1: %w", err)
	}
	id2, err := decodeID(req.ContactID2)
	if err != nil {
		return models.ContactPair{}, fmt.Errorf("invalid contact_id_2: %w", err)
	}

	return models.ContactPair{ContactID1: id1, ContactID2: id2}, nil
}

func decodeID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing")
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
	}
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// DedupeEvent is published for candidate and merge lifecycle changes.
type DedupeEvent struct {
	EventType   string                 `json:"event_type"`
	CandidateID string                 `json:"candidate_id,omitempty"`
	MergeID     string                 `json:"merge_id,omitempty"`
	ContactID1  int64                  `json:"contact_id_1"`
	ContactID2  int64                  `json:"contact_id_2"`
	SurvivorID  int64                  `json:"survivor_id,omitempty"`
	Score       float64                `json:"score,omitempty"`
	Status      models.CandidateStatus `json:"status,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	Actor       string                 `json:"actor,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Key partitions events by pair so the events of one pair stay ordered.
func (e *DedupeEvent) Key() string {
	pair := models.NewContactPair(e.ContactID1, e.ContactID2)
	return fmt.Sprintf("%d:%d", pair.ContactID1, pair.ContactID2)
}
