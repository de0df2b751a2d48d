package matching

import (
	"sync/atomic"

	"github.com/Ramsey-B/clover/pkg/models"
)

// ConfigHolder publishes the current DedupeConfig. Readers take a snapshot per
// pass; Swap replaces the whole value and never mutates the old one.
type ConfigHolder struct {
	current atomic.Pointer[models.DedupeConfig]
}

func NewConfigHolder(config models.DedupeConfig) (*ConfigHolder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	h := &ConfigHolder{}
	h.current.Store(&config)
	return h, nil
}

// Load returns the current config by value.
func (h *ConfigHolder) Load() models.DedupeConfig {
	return *h.current.Load()
}

// Swap validates and installs config, returning the previous value.
func (h *ConfigHolder) Swap(config models.DedupeConfig) (models.DedupeConfig, error) {
	if err := config.Validate(); err != nil {
		return h.Load(), err
	}
	return *h.current.Swap(&config), nil
}

// Scorer returns a PairScorer bound to the current config.
func (h *ConfigHolder) Scorer() *PairScorer {
	return NewPairScorer(h.Load())
}
