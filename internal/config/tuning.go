package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Scoring holds the driver ranking weights.
// The values are tuning knobs without a derivation; keep them in the tuning file.
type Scoring struct {
	DistanceCapMeters   float64 `koanf:"distance_cap_meters"`
	DistanceWeight      float64 `koanf:"distance_weight"`
	LoadWeight          float64 `koanf:"load_weight"`
	RatingWeight        float64 `koanf:"rating_weight"`
	MaxRating           float64 `koanf:"max_rating"`
	PriorityBonus       float64 `koanf:"priority_bonus"`
	ExperienceThreshold int     `koanf:"experience_threshold"`
}

const scoringEnvPrefix = "DISPATCH_SCORING_"

// DefaultScoring returns the weights used when no tuning file is given.
func DefaultScoring() Scoring {
	return Scoring{
		DistanceCapMeters:   10000,
		DistanceWeight:      0.5,
		LoadWeight:          0.4,
		RatingWeight:        0.2,
		MaxRating:           5,
		PriorityBonus:       0.15,
		ExperienceThreshold: 100,
	}
}

// LoadScoring reads weights from the YAML file at path (optional) and then from
// DISPATCH_SCORING_* environment variables. Missing keys keep their defaults.
func LoadScoring(path string) (Scoring, error) {
	out := DefaultScoring()
	k := koanf.New(".")

	if strings.TrimSpace(path) != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Scoring{}, fmt.Errorf("load tuning file %q: %w", path, err)
		}
	}
	err := k.Load(env.Provider(scoringEnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, scoringEnvPrefix))
	}), nil)
	if err != nil {
		return Scoring{}, fmt.Errorf("load tuning env: %w", err)
	}

	if err := k.Unmarshal("", &out); err != nil {
		return Scoring{}, fmt.Errorf("decode tuning: %w", err)
	}
	if out.DistanceCapMeters <= 0 || out.MaxRating <= 0 {
		return Scoring{}, fmt.Errorf("tuning: distance_cap_meters and max_rating must be positive")
	}
	if out.DistanceWeight < 0 || out.DistanceWeight > 1 || out.LoadWeight < 0 || out.LoadWeight > 1 {
		return Scoring{}, fmt.Errorf("tuning: distance_weight and load_weight must be within [0,1]")
	}
	return out, nil
}
