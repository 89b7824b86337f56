package validator

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type Check struct {
	Name   string `yaml:"name"`
	Passed bool   `yaml:"passed"`
	Detail string `yaml:"detail,omitempty"`
}

// Report is the outcome of one contract validation run.
type Report struct {
	Venue       string    `yaml:"venue"`
	Checks      []Check   `yaml:"checks"`
	Score       float64   `yaml:"score"`
	Threshold   float64   `yaml:"threshold"`
	GeneratedAt time.Time `yaml:"generated_at"`
}

func (r *Report) add(name string, passed bool, detail string) {
	if passed {
		detail = ""
	}
	r.Checks = append(r.Checks, Check{Name: name, Passed: passed, Detail: detail})
}

func (r *Report) finish() {
	passed := 0
	for _, c := range r.Checks {
		if c.Passed {
			passed++
		}
	}
	if len(r.Checks) > 0 {
		r.Score = float64(passed) / float64(len(r.Checks)) * 100
	}
	r.GeneratedAt = time.Now().UTC()
}

// Passed reports whether the score clears the registration threshold.
func (r Report) Passed() bool {
	return r.Score >= r.Threshold
}

// Render returns the report as YAML for logs and operator review.
func (r Report) Render() string {
	out, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Sprintf("venue: %s\nscore: %.1f (render failed: %v)", r.Venue, r.Score, err)
	}
	return string(out)
}
