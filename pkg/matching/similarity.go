package matching

import (
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

const (
	// MetaphoneBonus is added to the composite score when last-name metaphone keys agree.
	MetaphoneBonus = 0.05
	// NameExactBonus is added when the full normalized names are identical.
	NameExactBonus = 0.35
	// MetaphoneNameFloor is the minimum name similarity when metaphone keys agree.
	MetaphoneNameFloor = 0.7
)

// Result is the outcome of scoring one pair.
type Result struct {
	Pair       models.ContactPair     `json:"pair"`
	Score      float64                `json:"score"`
	Reason     string                 `json:"reason"`
	Status     models.CandidateStatus `json:"status"`
	Components models.ScoreComponents `json:"components"`
}

// PairScorer combines per-field similarities into one score using a fixed
// DedupeConfig. It holds no mutable state.
type PairScorer struct {
	config models.DedupeConfig
	scorer *Scorer
}

func NewPairScorer(config models.DedupeConfig) *PairScorer {
	return &PairScorer{
		config: config,
		scorer: NewScorer(),
	}
}

func (p *PairScorer) Config() models.DedupeConfig {
	return p.config
}

// Score compares two normalized contacts. Missing fields contribute nothing;
// the result does not depend on argument order. tag is used as the reason
// unless the exact-name rule applies; an empty tag means auto_score.
func (p *PairScorer) Score(a, b *models.Contact, tag string) Result {
	if a.ID > b.ID {
		a, b = b, a
	}
	na, nb := a.NormalizedFields, b.NormalizedFields

	c := models.ScoreComponents{
		EmailSim:   p.emailSimilarity(na, nb),
		PhoneEqual: p.phoneEqual(na, nb),
		NameSim:    p.scorer.JaroWinkler(na.FullNameNorm, nb.FullNameNorm),
		CompanySim: p.scorer.JaroWinkler(na.CompanyNorm, nb.CompanyNorm),
		AddressSim: p.scorer.JaroWinkler(na.AddressNorm, nb.AddressNorm),
	}

	c.MetaphoneMatch = na.LastNameMetaphone != "" && na.LastNameMetaphone == nb.LastNameMetaphone
	if c.MetaphoneMatch && c.NameSim < MetaphoneNameFloor {
		c.NameSim = MetaphoneNameFloor
	}
	c.NameExact = na.FullNameNorm != "" && na.FullNameNorm == nb.FullNameNorm

	w := p.config.Weights
	score := w.Email*c.EmailSim +
		w.Phone*c.PhoneEqual +
		w.Name*c.NameSim +
		w.Company*c.CompanySim +
		w.Address*c.AddressSim
	if c.MetaphoneMatch {
		score += MetaphoneBonus
	}
	if c.NameExact {
		score += NameExactBonus
	}

	score = models.ClampScore(score)
	if c.NameExact && score < p.config.Thresholds.Review {
		score = p.config.Thresholds.Review
	}

	reason := tag
	switch {
	case c.NameExact:
		reason = models.ReasonNameExact
	case reason == "":
		reason = models.ReasonAutoScore
	}

	return Result{
		Pair:       models.NewContactPair(a.ID, b.ID),
		Score:      score,
		Reason:     reason,
		Status:     p.StatusFor(score),
		Components: c,
	}
}

// StatusFor derives the candidate status a score earns on upsert. Scores
// below the auto threshold, including those below review, are pending.
func (p *PairScorer) StatusFor(score float64) models.CandidateStatus {
	if score >= p.config.Thresholds.Auto {
		return models.CandidateStatusApproved
	}
	return models.CandidateStatusPending
}

// BelowReview reports whether a score falls under the review threshold.
func (p *PairScorer) BelowReview(score float64) bool {
	return score < p.config.Thresholds.Review
}

func (p *PairScorer) emailSimilarity(a, b models.NormalizedFields) float64 {
	if p.scorer.ExactMatch(a.EmailNorm, b.EmailNorm) == 1 {
		return 1.0
	}
	return p.scorer.Levenshtein(a.EmailLocal, b.EmailLocal)
}

// phoneEqual only compares valid E.164 numbers. Digits-only leftovers of
// unparseable numbers are not comparable and score 0.
func (p *PairScorer) phoneEqual(a, b models.NormalizedFields) float64 {
	if !normalizers.IsE164(a.PhoneE164) || !normalizers.IsE164(b.PhoneE164) {
		return 0.0
	}
	return p.scorer.ExactMatch(a.PhoneE164, b.PhoneE164)
}
