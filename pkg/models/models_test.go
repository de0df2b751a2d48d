package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewContactPair(t *testing.T) {
	assert.Equal(t, NewContactPair(5, 9), NewContactPair(9, 5))
	assert.Equal(t, ContactPair{ContactID1: 5, ContactID2: 9}, NewContactPair(9, 5))
	assert.True(t, NewContactPair(9, 5).Contains(9))
	assert.False(t, NewContactPair(9, 5).Contains(7))
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.2, 0},
		{0, 0},
		{0.123456, 0.1235},
		{0.99994, 0.9999},
		{1.4, 1},
		{math.NaN(), 0},
		{math.Inf(1), 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampScore(tt.in))
	}
}

func TestDedupeConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultDedupeConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *DedupeConfig)
	}{
		{"negative weight", func(c *DedupeConfig) { c.Weights.Phone = -0.1 }},
		{"review above auto", func(c *DedupeConfig) { c.Thresholds.Review = 0.9; c.Thresholds.Auto = 0.8 }},
		{"auto above one", func(c *DedupeConfig) { c.Thresholds.Auto = 1.2 }},
		{"negative review", func(c *DedupeConfig) { c.Thresholds.Review = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDedupeConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultDedupeConfig()
	cfg.Weights = Weights{Email: 1, Phone: 1, Name: 1, Company: 1, Address: 1}
	cfg.Thresholds = Thresholds{Review: 0.7, Auto: 0.7}
	assert.NoError(t, cfg.Validate(), "weights may exceed one in total and review may equal auto")
}

func TestCandidateStatus(t *testing.T) {
	assert.True(t, CandidateStatusPending.IsValid())
	assert.False(t, CandidateStatus("auto_merged").IsValid())
	assert.False(t, CandidateStatusPending.IsTerminal())
	assert.True(t, CandidateStatusRejected.IsTerminal())
}

func TestDedupeMerge_LoserID(t *testing.T) {
	m := DedupeMerge{ContactID1: 3, ContactID2: 8, SurvivorID: 8}
	assert.Equal(t, int64(3), m.LoserID())
}
