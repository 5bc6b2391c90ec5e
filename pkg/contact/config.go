package contact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/chazu/contactkit/pkg/broadphase"
	"github.com/chazu/contactkit/pkg/ccd"
)

var (
	// ErrInvalidConfig wraps every validation failure of a Config.
	ErrInvalidConfig = errors.New("invalid contact config")
	// ErrFixedStiffnessUnsupported is returned when a Config asks for a
	// fixed, non-adaptive barrier stiffness.
	ErrFixedStiffnessUnsupported = errors.New("fixed barrier stiffness not implemented")
)

// CCDConfig bounds the continuous collision step limiter.
type CCDConfig struct {
	Tolerance float64 `yaml:"tolerance" validate:"gt=0"`
	// MaxIterations caps the advancement loop per pair; -1 means no cap.
	MaxIterations int `yaml:"max_iterations" validate:"eq=-1|gte=1"`
	// ValidateSteps re-checks each admissible step for static
	// intersections and halves it until clean.
	ValidateSteps bool `yaml:"validate_steps"`
}

// Config holds the settings of a contact Form.
type Config struct {
	DHat                     float64           `yaml:"dhat" validate:"gt=0"`
	AdaptiveBarrierStiffness bool              `yaml:"adaptive_barrier_stiffness"`
	TimeDependent            bool              `yaml:"time_dependent"`
	BroadPhase               broadphase.Method `yaml:"broad_phase" validate:"required,broadphase"`
	CCD                      CCDConfig         `yaml:"ccd"`
	ProjectToPSD             bool              `yaml:"project_to_psd"`
	Workers                  int               `yaml:"workers" validate:"gte=0"`
}

// DefaultConfig returns the settings used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		DHat:                     1e-3,
		AdaptiveBarrierStiffness: true,
		TimeDependent:            true,
		BroadPhase:               broadphase.HashGrid,
		CCD: CCDConfig{
			Tolerance:     1e-6,
			MaxIterations: 1_000_000,
		},
		ProjectToPSD: true,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("broadphase", func(fl validator.FieldLevel) bool {
		return broadphase.Method(fl.Field().String()).Valid()
	})
	if err != nil {
		panic(fmt.Sprintf("contact: register broadphase validation: %v", err))
	}
	return v
}

// Validate checks c. Fixed stiffness is reported as
// ErrFixedStiffnessUnsupported; every other violation wraps ErrInvalidConfig.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !c.AdaptiveBarrierStiffness {
		return ErrFixedStiffnessUnsupported
	}
	return nil
}

// ccdOptions converts the CCD section for the step limiter.
func (c Config) ccdOptions() ccd.Options {
	return ccd.Options{
		Tolerance:     c.CCD.Tolerance,
		MaxIterations: c.CCD.MaxIterations,
		Proximity:     c.DHat,
		Workers:       c.Workers,
	}
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("contact: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("contact: read config: %w", err)
	}
	return ParseConfig(data)
}
