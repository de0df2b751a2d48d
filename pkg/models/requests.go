package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContactRef is a contact id as a caller sent it: a JSON number or a string.
// It is parsed and validated by the service, not at decode time.
type ContactRef string

func (r *ContactRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*r = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = ContactRef(s)
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*r = ContactRef(b)
	default:
		return fmt.Errorf("contact id must be a number or string, got %s", b)
	}
	return nil
}

type ForcePairRequest struct {
	ContactID1 ContactRef `json:"contact_id_1"`
	ContactID2 ContactRef `json:"contact_id_2"`
}

type NormalizeRequest struct {
	AfterID int64 `json:"after_id" validate:"gte=0"`
	Limit   int   `json:"limit" validate:"gte=0"`
}

type ScoreRequest struct {
	Pairs []ContactPair `json:"pairs" validate:"required,min=1,max=1000"`
}
