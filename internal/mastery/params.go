package mastery

import "fmt"

const (
	// DefaultMasteryThreshold is the score at or above which a concept counts as mastered.
	DefaultMasteryThreshold = 0.7

	// DefaultFrustrationThreshold is the score above which the recommender
	// steers the learner away from the current concept.
	DefaultFrustrationThreshold = 0.8
)

// Params holds the tunable constants of the mastery model. Rates are the
// step sizes of exponential moving averages and must lie in (0, 1].
type Params struct {
	MasteryThreshold     float64 `mapstructure:"mastery_threshold"`
	FrustrationThreshold float64 `mapstructure:"frustration_threshold"`

	// CorrectRate and IncorrectRate move the mastery score toward 1 and 0.
	// Failure is weighted more heavily than success.
	CorrectRate   float64 `mapstructure:"correct_rate"`
	IncorrectRate float64 `mapstructure:"incorrect_rate"`

	// FrustrationRiseRate applies on an incorrect attempt, FrustrationDecayRate
	// on a correct one. A single success does not erase accumulated struggle.
	FrustrationRiseRate  float64 `mapstructure:"frustration_rise_rate"`
	FrustrationDecayRate float64 `mapstructure:"frustration_decay_rate"`

	// ConfidenceRate moves confidence toward 1 on every attempt.
	ConfidenceRate float64 `mapstructure:"confidence_rate"`
}

// DefaultParams returns the standard mastery model constants.
func DefaultParams() Params {
	return Params{
		MasteryThreshold:     DefaultMasteryThreshold,
		FrustrationThreshold: DefaultFrustrationThreshold,
		CorrectRate:          0.3,
		IncorrectRate:        0.4,
		FrustrationRiseRate:  0.5,
		FrustrationDecayRate: 0.3,
		ConfidenceRate:       0.1,
	}
}

// Validate checks that every threshold lies in [0, 1] and every rate in (0, 1].
func (p Params) Validate() error {
	thresholds := []struct {
		name string
		v    float64
	}{
		{"mastery_threshold", p.MasteryThreshold},
		{"frustration_threshold", p.FrustrationThreshold},
	}
	for _, th := range thresholds {
		if th.v < 0 || th.v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %g", th.name, th.v)
		}
	}

	rates := []struct {
		name string
		v    float64
	}{
		{"correct_rate", p.CorrectRate},
		{"incorrect_rate", p.IncorrectRate},
		{"frustration_rise_rate", p.FrustrationRiseRate},
		{"frustration_decay_rate", p.FrustrationDecayRate},
		{"confidence_rate", p.ConfidenceRate},
	}
	for _, r := range rates {
		if r.v <= 0 || r.v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %g", r.name, r.v)
		}
	}
	return nil
}
