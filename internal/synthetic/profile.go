// Package synthetic fabricates physiologically plausible telemetry following
// a fixed activity timeline: rest, warm-up, exercise, cool-down, recovery.
package synthetic

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Band is a random activity level in [Min, Min+Spread).
type Band struct {
	Min    float64 `yaml:"min"`
	Spread float64 `yaml:"spread"`
}

// Vital describes how one rate follows activity.
type Vital struct {
	Base   float64 `yaml:"base"`
	Range  float64 `yaml:"range"`
	Jitter int     `yaml:"jitter"`
	Min    int     `yaml:"min"`
	Max    int     `yaml:"max"`
}

// SweatStep holds Level for elapsed seconds below Before.
type SweatStep struct {
	Before int `yaml:"before"`
	Level  int `yaml:"level"`
}

// Profile holds every curve constant. Phase boundaries are elapsed seconds at
// which the next phase starts.
type Profile struct {
	RestEnd     int `yaml:"rest_end"`
	WarmUpEnd   int `yaml:"warm_up_end"`
	ExerciseEnd int `yaml:"exercise_end"`
	CoolDownEnd int `yaml:"cool_down_end"`

	Exercise Band `yaml:"exercise_activity"`
	Recovery Band `yaml:"recovery_activity"`

	HR              Vital   `yaml:"hr"`
	RR              Vital   `yaml:"rr"`
	BreathAmplitude float64 `yaml:"breath_amplitude"`
	BreathFrequency float64 `yaml:"breath_frequency"`

	Sweat      []SweatStep `yaml:"sweat"`
	SweatFinal int         `yaml:"sweat_final"`

	LeadOffProbability float64 `yaml:"lead_off_probability"`
}

// DefaultProfile returns the ten-minute session the dashboard was designed
// around.
func DefaultProfile() Profile {
	return Profile{
		RestEnd:     60,
		WarmUpEnd:   180,
		ExerciseEnd: 300,
		CoolDownEnd: 420,

		Exercise: Band{Min: 0.9, Spread: 0.2},
		Recovery: Band{Min: 0.1, Spread: 0.1},

		HR:              Vital{Base: 70, Range: 110, Jitter: 3, Min: 50, Max: 180},
		RR:              Vital{Base: 14, Range: 21, Jitter: 2, Min: 10, Max: 35},
		BreathAmplitude: 2,
		BreathFrequency: 0.1,

		Sweat: []SweatStep{
			{Before: 90, Level: 0},
			{Before: 200, Level: 1},
			{Before: 280, Level: 2},
			{Before: 400, Level: 3},
			{Before: 500, Level: 2},
		},
		SweatFinal: 1,

		LeadOffProbability: 0.01,
	}
}

// LoadProfile reads a YAML profile. Keys missing from the file keep their
// default value. An empty path returns DefaultProfile.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the profile for boundaries that would make the curves
// meaningless.
func (p Profile) Validate() error {
	if p.RestEnd <= 0 || p.WarmUpEnd <= p.RestEnd || p.ExerciseEnd <= p.WarmUpEnd || p.CoolDownEnd <= p.ExerciseEnd {
		return fmt.Errorf("phase boundaries must be positive and ascending, got %d/%d/%d/%d",
			p.RestEnd, p.WarmUpEnd, p.ExerciseEnd, p.CoolDownEnd)
	}
	for name, v := range map[string]Vital{"hr": p.HR, "rr": p.RR} {
		if v.Min > v.Max {
			return fmt.Errorf("%s: min %d exceeds max %d", name, v.Min, v.Max)
		}
		if v.Jitter < 0 {
			return fmt.Errorf("%s: negative jitter", name)
		}
	}
	last := -1
	for _, step := range p.Sweat {
		if step.Before <= last {
			return fmt.Errorf("sweat steps must be ascending, got %d after %d", step.Before, last)
		}
		if step.Level < 0 || step.Level > 3 {
			return fmt.Errorf("sweat level %d out of range 0-3", step.Level)
		}
		last = step.Before
	}
	if p.SweatFinal < 0 || p.SweatFinal > 3 {
		return fmt.Errorf("sweat_final %d out of range 0-3", p.SweatFinal)
	}
	if p.LeadOffProbability < 0 || p.LeadOffProbability > 1 {
		return fmt.Errorf("lead_off_probability %v out of range 0-1", p.LeadOffProbability)
	}
	return nil
}
