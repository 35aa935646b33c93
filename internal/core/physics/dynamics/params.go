package dynamics

import (
	"errors"
	"fmt"
)

// IntegrationParameters tunes the stepper. All lengths are in meters and
// times in seconds.
type IntegrationParameters struct {
	Dt float64 `yaml:"dt" toml:"dt"`

	SolverIterations     int     `yaml:"solver_iterations" toml:"solver_iterations"`
	ERP                  float64 `yaml:"erp" toml:"erp"`
	JointERP             float64 `yaml:"joint_erp" toml:"joint_erp"`
	AllowedLinearError   float64 `yaml:"allowed_linear_error" toml:"allowed_linear_error"`
	PredictionDistance   float64 `yaml:"prediction_distance" toml:"prediction_distance"`
	RestitutionThreshold float64 `yaml:"restitution_threshold" toml:"restitution_threshold"`

	LinearSleepThreshold  float64 `yaml:"linear_sleep_threshold" toml:"linear_sleep_threshold"`
	AngularSleepThreshold float64 `yaml:"angular_sleep_threshold" toml:"angular_sleep_threshold"`
	TimeUntilSleep        float64 `yaml:"time_until_sleep" toml:"time_until_sleep"`

	CCDEnabled bool `yaml:"ccd_enabled" toml:"ccd_enabled"`

	// NarrowPhaseWorkers bounds the goroutines used for contact generation;
	// zero means GOMAXPROCS.
	NarrowPhaseWorkers int `yaml:"narrow_phase_workers" toml:"narrow_phase_workers"`
}

func DefaultIntegrationParameters() IntegrationParameters {
	return IntegrationParameters{
		Dt:                    1.0 / 60.0,
		SolverIterations:      4,
		ERP:                   0.2,
		JointERP:              0.2,
		AllowedLinearError:    0.005,
		PredictionDistance:    0.002,
		RestitutionThreshold:  1.0,
		LinearSleepThreshold:  0.1,
		AngularSleepThreshold: 0.1,
		TimeUntilSleep:        2.0,
		CCDEnabled:            true,
	}
}

var ErrInvalidParameters = errors.New("invalid integration parameters")

func (p IntegrationParameters) Validate() error {
	switch {
	case p.Dt <= 0:
		return fmt.Errorf("%w: dt must be positive, got %v", ErrInvalidParameters, p.Dt)
	case p.SolverIterations < 1:
		return fmt.Errorf("%w: solver_iterations must be at least 1, got %d", ErrInvalidParameters, p.SolverIterations)
	case p.ERP < 0 || p.ERP > 1:
		return fmt.Errorf("%w: erp must be in [0, 1], got %v", ErrInvalidParameters, p.ERP)
	case p.JointERP < 0 || p.JointERP > 1:
		return fmt.Errorf("%w: joint_erp must be in [0, 1], got %v", ErrInvalidParameters, p.JointERP)
	case p.AllowedLinearError < 0:
		return fmt.Errorf("%w: allowed_linear_error must not be negative", ErrInvalidParameters)
	case p.PredictionDistance < 0:
		return fmt.Errorf("%w: prediction_distance must not be negative", ErrInvalidParameters)
	case p.NarrowPhaseWorkers < 0:
		return fmt.Errorf("%w: narrow_phase_workers must not be negative", ErrInvalidParameters)
	}
	return nil
}
