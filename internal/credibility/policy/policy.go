// Package policy decides how far a verdict moves a submitter's score.
//
// Fake verdicts always carry the classifier's suggested penalty. How much a
// genuine report is rewarded is the part that varies between deployments,
// so it is pluggable.
package policy

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// MaxPenalty bounds a single penalty regardless of what the classifier asks.
const MaxPenalty = 25

// Verdict is the authenticity outcome a policy prices.
type Verdict struct {
	IsFake         bool
	Confidence     float64
	SuggestedDelta int
}

type Policy interface {
	Delta(v Verdict) int
}

// penalty normalizes a suggested delta into a bounded non-positive value.
func penalty(suggested int) int {
	if suggested < 0 {
		suggested = -suggested
	}
	return -min(suggested, MaxPenalty)
}

// Suggested uses the classifier's suggestion for both outcomes. A genuine
// verdict never lowers the score and a fake one never raises it.
type Suggested struct{}

func (Suggested) Delta(v Verdict) int {
	if v.IsFake {
		return penalty(v.SuggestedDelta)
	}
	return max(v.SuggestedDelta, 0)
}

// Band rewards genuine reports at or above MinConfidence.
type Band struct {
	MinConfidence float64 `yaml:"min_confidence"`
	Reward        int     `yaml:"reward"`
}

// Banded rewards genuine reports by classifier confidence and ignores the
// classifier's suggested reward.
type Banded struct {
	Bands []Band `yaml:"genuine_bands"`
}

// DefaultBanded rewards +5 at 0.95, +3 at 0.85 and +1 at 0.70 confidence.
func DefaultBanded() *Banded {
	return &Banded{Bands: []Band{
		{MinConfidence: 0.95, Reward: 5},
		{MinConfidence: 0.85, Reward: 3},
		{MinConfidence: 0.70, Reward: 1},
	}}
}

func (b *Banded) Delta(v Verdict) int {
	if v.IsFake {
		return penalty(v.SuggestedDelta)
	}
	for _, band := range b.Bands {
		if v.Confidence >= band.MinConfidence {
			return band.Reward
		}
	}
	return 0
}

func (b *Banded) normalize() error {
	for _, band := range b.Bands {
		if band.MinConfidence < 0 || band.MinConfidence > 1 {
			return fmt.Errorf("band confidence %v out of range", band.MinConfidence)
		}
		if band.Reward < 0 {
			return fmt.Errorf("band reward %d must not be negative", band.Reward)
		}
	}
	sort.Slice(b.Bands, func(i, j int) bool {
		return b.Bands[i].MinConfidence > b.Bands[j].MinConfidence
	})
	return nil
}

// file is the on-disk policy document.
type file struct {
	Kind         string `yaml:"kind"`
	GenuineBands []Band `yaml:"genuine_bands"`
}

// Load reads a policy file. An empty path returns DefaultBanded.
//
//	kind: banded          # or "suggested"
//	genuine_bands:
//	  - {min_confidence: 0.9, reward: 4}
func Load(path string) (Policy, error) {
	if path == "" {
		return DefaultBanded(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reward policy: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (Policy, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse reward policy: %w", err)
	}
	switch f.Kind {
	case "suggested":
		return Suggested{}, nil
	case "", "banded":
		if len(f.GenuineBands) == 0 {
			return DefaultBanded(), nil
		}
		b := &Banded{Bands: f.GenuineBands}
		if err := b.normalize(); err != nil {
			return nil, fmt.Errorf("invalid reward policy: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown reward policy kind %q", f.Kind)
	}
}
