package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Port is the port the HTTP API binds to.
	Port int `koanf:"port" validate:"required,gte=1,lte=65535"`

	// Store selects the rule store backend.
	Store string `koanf:"store" validate:"required,oneof=memory bolt"`

	// DBPath is the bolt database file, used when Store is "bolt".
	DBPath string `koanf:"db_path" validate:"required_if=Store bolt"`

	// SeedDir optionally points at a directory of seed files loaded into an
	// empty store at startup.
	SeedDir string `koanf:"seed_dir"`

	// CacheSize caps the rule-match cache.
	CacheSize uint `koanf:"cache_size" validate:"required,gte=1"`

	// DisableCache turns the match index off entirely; every evaluation then
	// scans the full rule set.
	DisableCache bool `koanf:"disable_cache"`

	// BloomFPRate is the target false-positive rate for the match prefilter.
	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"required,gt=0,lt=1"`
}

// DEFAULT_APP_CONFIG defines the default application configuration for the
// browsing-control service.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:          "prod",
	LogLevel:     "info",
	Port:         8080,
	Store:        "memory",
	DBPath:       "/var/lib/browsectl/control.db",
	SeedDir:      "",
	CacheSize:    1000,
	DisableCache: false,
	BloomFPRate:  0.01,
}

// envLoader loads environment variables with the prefix "BROWSECTL_",
// lowercasing keys and stripping the prefix. It is a var so tests can mock it.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "BROWSECTL_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "BROWSECTL_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads default configuration values into the provided Koanf
// instance using the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
