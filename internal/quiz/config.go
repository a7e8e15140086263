package quiz

import (
	"errors"
	"fmt"
	"time"
)

// GradingConfig tunes short-answer scoring.
type GradingConfig struct {
	// FullThreshold is the adjusted similarity at or above which full credit is given.
	FullThreshold float64
	// PartialThreshold is the adjusted similarity at or above which PartialCredit is given.
	PartialThreshold float64
	PartialCredit    float64
	// KeywordBonus is added to the similarity when the answer mentions a rubric keyword.
	KeywordBonus float64
	// PointGranularity is the rounding step for awarded points.
	PointGranularity float64
	EmbedConcurrency int
}

// DefaultGradingConfig returns the production grading tunables.
func DefaultGradingConfig() GradingConfig {
	return GradingConfig{
		FullThreshold:    0.85,
		PartialThreshold: 0.70,
		PartialCredit:    0.5,
		KeywordBonus:     0.1,
		PointGranularity: 0.01,
		EmbedConcurrency: 4,
	}
}

// Validate checks the thresholds are ordered and within [0, 1].
func (c GradingConfig) Validate() error {
	if c.PartialThreshold < 0 || c.FullThreshold > 1 || c.PartialThreshold > c.FullThreshold {
		return fmt.Errorf("thresholds must satisfy 0 <= partial (%v) <= full (%v) <= 1", c.PartialThreshold, c.FullThreshold)
	}
	if c.PartialCredit < 0 || c.PartialCredit > 1 {
		return fmt.Errorf("partial credit %v outside [0, 1]", c.PartialCredit)
	}
	if c.KeywordBonus < 0 || c.KeywordBonus > 1 {
		return fmt.Errorf("keyword bonus %v outside [0, 1]", c.KeywordBonus)
	}
	if c.PointGranularity <= 0 || c.PointGranularity > 1 {
		return fmt.Errorf("point granularity %v outside (0, 1]", c.PointGranularity)
	}
	return nil
}

// GenerationConfig bounds quiz generation.
type GenerationConfig struct {
	MinCount    int
	MaxCount    int
	MCQPoints   int
	ShortPoints int
	// Timeout caps a single generative call before falling back.
	Timeout time.Duration
}

// DefaultGenerationConfig returns the production generation settings.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MinCount:    0,
		MaxCount:    10,
		MCQPoints:   1,
		ShortPoints: 2,
		Timeout:     30 * time.Second,
	}
}

// ReportConfig tunes learning report derivation.
type ReportConfig struct {
	// StrengthRatio is the per-question earned/max ratio that counts as a strength.
	StrengthRatio     float64
	MaxMicroExercises int
	Timeout           time.Duration
}

// DefaultReportConfig returns the production report settings.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		StrengthRatio:     0.7,
		MaxMicroExercises: 3,
		Timeout:           30 * time.Second,
	}
}

// Config groups all engine tunables.
type Config struct {
	Grading    GradingConfig
	Generation GenerationConfig
	Report     ReportConfig
}

// DefaultConfig returns the production engine settings.
func DefaultConfig() Config {
	return Config{
		Grading:    DefaultGradingConfig(),
		Generation: DefaultGenerationConfig(),
		Report:     DefaultReportConfig(),
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Grading.Validate(); err != nil {
		return fmt.Errorf("grading: %w", err)
	}
	g := c.Generation
	if g.MinCount < 0 || g.MaxCount < g.MinCount {
		return fmt.Errorf("generation: count range [%d, %d] is invalid", g.MinCount, g.MaxCount)
	}
	if g.MCQPoints <= 0 || g.ShortPoints <= 0 {
		return errors.New("generation: question points must be positive")
	}
	if g.Timeout <= 0 {
		return fmt.Errorf("generation: timeout %v must be positive", g.Timeout)
	}
	if c.Report.Timeout <= 0 {
		return fmt.Errorf("report: timeout %v must be positive", c.Report.Timeout)
	}
	if c.Report.StrengthRatio < 0 || c.Report.StrengthRatio > 1 {
		return fmt.Errorf("report: strength ratio %v outside [0, 1]", c.Report.StrengthRatio)
	}
	return nil
}
