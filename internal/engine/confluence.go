package engine

import (
	"math"
	"time"

	"signal-synth/internal/analysis/indicators"
	"signal-synth/internal/config"
	"signal-synth/internal/models"
)

// countBonusCap is the buffer size at which the count bonus saturates.
const countBonusCap = 10

// ConfluenceScorer combines a buffered alert window into a 0-100 score and
// a directional bias. Identical inputs always produce identical output: the
// only time dependence is the recency decay, applied from the decision time
// passed in by the caller.
type ConfluenceScorer struct {
	weights  config.ConfluenceConfig
	halfLife time.Duration
}

// NewConfluenceScorer creates a scorer with the given weights and half-life.
func NewConfluenceScorer(cfg config.ConfluenceConfig) *ConfluenceScorer {
	return &ConfluenceScorer{
		weights:  cfg,
		halfLife: time.Duration(cfg.HalfLifeSeconds) * time.Second,
	}
}

// Score computes the confluence of the buffered alerts as of decisionTime.
func (s *ConfluenceScorer) Score(window *BufferedWindow, decisionTime time.Time) models.ConfluenceResult {
	alerts := window.Alerts()
	if len(alerts) == 0 {
		return models.ConfluenceResult{Bias: models.DirectionNeutral}
	}

	n := len(alerts)
	decays := make([]float64, n)
	var decaySum float64
	for i, a := range alerts {
		decays[i] = s.decay(decisionTime.Sub(a.Timestamp))
		decaySum += decays[i]
	}

	// Decay-weighted mean confidence, scaled to 0-100.
	var confWeighted float64
	for i, a := range alerts {
		confWeighted += decays[i] * a.Confidence
	}
	confComponent := confWeighted / decaySum * 100

	// Directional agreement ratio: majority count over total.
	majority := window.MajorityDirection()
	majorityCount := 0
	for _, a := range alerts {
		if a.Direction == majority {
			majorityCount++
		}
	}
	agreement := float64(majorityCount) / float64(n)
	agreeComponent := agreement * 100

	bias := majority
	if agreement <= 0.5 {
		bias = models.DirectionNeutral
	}

	// Count bonus grows sub-linearly and saturates at countBonusCap alerts.
	countComponent := math.Log1p(float64(n)) / math.Log1p(countBonusCap) * 100
	if countComponent > 100 {
		countComponent = 100
	}

	wSum := s.weights.ConfidenceWeight + s.weights.AgreementWeight + s.weights.CountWeight
	base := (s.weights.ConfidenceWeight*confComponent +
		s.weights.AgreementWeight*agreeComponent +
		s.weights.CountWeight*countComponent) / wSum

	// Average decay discounts windows dominated by old alerts.
	avgDecay := decaySum / float64(n)
	score := indicators.Clamp(base*avgDecay, 0, 100)

	return models.ConfluenceResult{
		Score: score,
		Bias:  bias,
		Components: map[string]float64{
			"confidence": confComponent,
			"agreement":  agreeComponent,
			"count":      countComponent,
			"recency":    avgDecay * 100,
		},
	}
}

// decay returns the exponential recency weight for an alert of the given
// age. Fresh and future-stamped alerts weigh 1.
func (s *ConfluenceScorer) decay(age time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(s.halfLife))
}
