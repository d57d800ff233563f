package dispatch

import (
	"math"
	"sort"

	"service-dispatcher/internal/domain"
)

// Weights tunes how candidates are ranked.
type Weights struct {
	// DistanceCapMeters is the distance at which the distance penalty saturates.
	DistanceCapMeters float64
	DistanceWeight    float64
	LoadWeight        float64
	RatingWeight      float64
	MaxRating         float64
	// PriorityBonus applies to high priority deliveries offered to experienced drivers.
	PriorityBonus       float64
	ExperienceThreshold int
}

const baseScore = 100.0

// Scorer ranks candidates for a delivery.
type Scorer struct {
	w Weights
}

// NewScorer creates a new Scorer.
func NewScorer(w Weights) Scorer {
	return Scorer{w: w}
}

// Ranked is a candidate with its score.
type Ranked struct {
	domain.Candidate
	Score float64
}

// Score rates one candidate; higher is better.
func (s Scorer) Score(c domain.Candidate, priority domain.Priority) float64 {
	score := baseScore

	if s.w.DistanceCapMeters > 0 {
		score *= 1 - s.w.DistanceWeight*math.Min(c.DistanceMeters/s.w.DistanceCapMeters, 1)
	}
	if c.Driver.MaxCapacity > 0 {
		score *= 1 - s.w.LoadWeight*float64(c.Driver.CurrentLoad)/float64(c.Driver.MaxCapacity)
	}
	if s.w.MaxRating > 0 {
		rating := math.Max(0, math.Min(c.Driver.Rating, s.w.MaxRating))
		score *= 1 + s.w.RatingWeight*rating/s.w.MaxRating
	}
	if priority == domain.PriorityHigh && c.Driver.CompletedDeliveries >= s.w.ExperienceThreshold {
		score *= 1 + s.w.PriorityBonus
	}
	return score
}

// Rank orders candidates by score descending, then distance ascending, then driver id.
func (s Scorer) Rank(candidates []domain.Candidate, priority domain.Priority) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Ranked{Candidate: c, Score: s.Score(c, priority)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceMeters != b.DistanceMeters {
			return a.DistanceMeters < b.DistanceMeters
		}
		return a.Driver.ID < b.Driver.ID
	})
	return out
}
