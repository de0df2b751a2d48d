package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Weights scale each similarity component. They need not sum to 1; the
// composite score is clamped.
type Weights struct {
	Email   float64 `json:"email" validate:"gte=0"`
	Phone   float64 `json:"phone" validate:"gte=0"`
	Name    float64 `json:"name" validate:"gte=0"`
	Company float64 `json:"company" validate:"gte=0"`
	Address float64 `json:"address" validate:"gte=0"`
}

type Thresholds struct {
	Review float64 `json:"review" validate:"gte=0,lte=1,ltefield=Auto"`
	Auto   float64 `json:"auto" validate:"gte=0,lte=1"`
}

// DedupeConfig is an immutable scoring configuration. Reloading builds a new
// value and swaps it in; a value is never modified once in use.
type DedupeConfig struct {
	Weights    Weights    `json:"weights"`
	Thresholds Thresholds `json:"thresholds"`
	// PersistBelowReview keeps candidates scoring under the review threshold
	// as pending. When false an automatic scoring pass skips them.
	PersistBelowReview bool `json:"persist_below_review"`
}

func DefaultDedupeConfig() DedupeConfig {
	return DedupeConfig{
		Weights: Weights{
			Email:   0.3,
			Phone:   0.1,
			Name:    0.4,
			Company: 0.1,
			Address: 0.1,
		},
		Thresholds: Thresholds{
			Review: 0.5,
			Auto:   0.85,
		},
		PersistBelowReview: true,
	}
}

func (c DedupeConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid dedupe config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid dedupe config: %w", err)
	}
	return nil
}
