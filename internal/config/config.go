package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/wsdpi/internal/logging"
	"github.com/danmuck/wsdpi/internal/protocol"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

const (
	DefaultName          = "wsdpi"
	DefaultAddr          = ":9300"
	DefaultAttemptBudget = 10
	DefaultMaxFlows      = 65536
	DefaultLogLevel      = "info"

	// MaxAttemptBudget keeps the per-flow observation window small.
	MaxAttemptBudget = 255
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	Name               string      `toml:"name"`
	Addr               string      `toml:"addr"`
	CorsOrigins        []string    `toml:"cors_origins"`
	AttemptBudget      int         `toml:"attempt_budget"`
	DeferShortSegments bool        `toml:"defer_short_segments"`
	MaxFlows           int         `toml:"max_flows"`
	LogLevel           string      `toml:"log_level"`
	DisabledDissectors []string    `toml:"disabled_dissectors"`
	Guesses            []PortGuess `toml:"guess"`
}

// PortGuess maps a well-known port onto the protocol a new flow is tentatively
// classified as.
type PortGuess struct {
	Port     uint16 `toml:"port"`
	Protocol string `toml:"protocol"`
}

func Default() Config {
	return Config{
		Name:          DefaultName,
		Addr:          DefaultAddr,
		CorsOrigins:   []string{"http://localhost:3000"},
		AttemptBudget: DefaultAttemptBudget,
		MaxFlows:      DefaultMaxFlows,
		LogLevel:      DefaultLogLevel,
		Guesses: []PortGuess{
			{Port: 80, Protocol: "HTTP"},
			{Port: 8080, Protocol: "HTTP"},
		},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	// Array tables append to an existing slice; start empty so a file's
	// [[guess]] entries replace the defaults instead of extending them.
	guesses := cfg.Guesses
	cfg.Guesses = nil
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Guesses == nil {
		cfg.Guesses = guesses
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// Validate reports every problem in cfg at once.
func Validate(cfg Config) error {
	var err error
	if strings.TrimSpace(cfg.Name) == "" {
		err = multierr.Append(err, fmt.Errorf("%w: missing name", ErrInvalidConfig))
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		err = multierr.Append(err, fmt.Errorf("%w: missing addr", ErrInvalidConfig))
	}
	if cfg.AttemptBudget < 1 || cfg.AttemptBudget > MaxAttemptBudget {
		err = multierr.Append(err, fmt.Errorf("%w: attempt_budget must be in 1..%d, got %d",
			ErrInvalidConfig, MaxAttemptBudget, cfg.AttemptBudget))
	}
	if cfg.MaxFlows < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: max_flows must be positive, got %d", ErrInvalidConfig, cfg.MaxFlows))
	}
	if !logging.ValidLevel(cfg.LogLevel) {
		err = multierr.Append(err, fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, cfg.LogLevel))
	}
	for i, name := range cfg.DisabledDissectors {
		if strings.TrimSpace(name) == "" {
			err = multierr.Append(err, fmt.Errorf("%w: disabled_dissectors[%d] is empty", ErrInvalidConfig, i))
		}
	}
	for i, g := range cfg.Guesses {
		if verr := ValidateGuess(g); verr != nil {
			err = multierr.Append(err, fmt.Errorf("guess[%d] invalid: %w", i, verr))
		}
	}
	return err
}

func ValidateGuess(g PortGuess) error {
	if g.Port == 0 {
		return fmt.Errorf("%w: port is required", ErrInvalidConfig)
	}
	id, ok := protocol.Lookup(g.Protocol)
	if !ok || id == protocol.Unknown {
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalidConfig, g.Protocol)
	}
	return nil
}

// Problems splits a Validate error into its individual findings.
func Problems(err error) []error {
	return multierr.Errors(err)
}
