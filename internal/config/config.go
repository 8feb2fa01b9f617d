package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dadata   DadataConfig   `yaml:"dadata" mapstructure:"dadata"`
	Throttle ThrottleConfig `yaml:"throttle" mapstructure:"throttle"`
	Dataset  DatasetConfig  `yaml:"dataset" mapstructure:"dataset"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Metro    MetroConfig    `yaml:"metro" mapstructure:"metro"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DadataConfig holds Dadata API credentials and endpoints.
type DadataConfig struct {
	APIKey          string `yaml:"api_key" mapstructure:"api_key"`
	SecretKey       string `yaml:"secret_key" mapstructure:"secret_key"`
	SuggestURL      string `yaml:"suggest_url" mapstructure:"suggest_url"`
	CleanerURL      string `yaml:"cleaner_url" mapstructure:"cleaner_url"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	GeolocateRadius int    `yaml:"geolocate_radius_meters" mapstructure:"geolocate_radius_meters"`
}

// Timeout returns the per-request HTTP timeout.
func (c DadataConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ThrottleConfig bounds the outbound call rate.
type ThrottleConfig struct {
	Calls  int           `yaml:"calls" mapstructure:"calls"`
	Period time.Duration `yaml:"period" mapstructure:"period"`
}

// DatasetConfig configures ingestion.
type DatasetConfig struct {
	MaxRows int `yaml:"max_rows" mapstructure:"max_rows"`
}

// OutputConfig configures where enriched files are written.
type OutputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	DateFormat string `yaml:"date_format" mapstructure:"date_format"`
}

// MetroConfig lists the FIAS ids of cities with a metro system. Empty
// means the built-in list.
type MetroConfig struct {
	Cities []string `yaml:"cities" mapstructure:"cities"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadDotEnv exports variables from a .env file into the process
// environment. Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return eris.Wrapf(err, "config: load %s", path)
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEODATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credentials are also read from the unprefixed names.
	if err := v.BindEnv("dadata.api_key", "GEODATA_DADATA_API_KEY", "DADATA_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind dadata.api_key")
	}
	if err := v.BindEnv("dadata.secret_key", "GEODATA_DADATA_SECRET_KEY", "DADATA_SECRET_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind dadata.secret_key")
	}

	// Defaults
	v.SetDefault("dadata.suggest_url", "https://suggestions.dadata.ru/suggestions/api/4_1/rs")
	v.SetDefault("dadata.cleaner_url", "https://cleaner.dadata.ru/api/v1")
	v.SetDefault("dadata.timeout_secs", 10)
	v.SetDefault("dadata.geolocate_radius_meters", 100)
	v.SetDefault("throttle.calls", 30)
	v.SetDefault("throttle.period", time.Second)
	v.SetDefault("dataset.max_rows", 10000)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.date_format", "02_01_06")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings needed by the given subcommand are
// present and sane.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "coords", "reverse":
		if c.Dadata.APIKey == "" {
			problems = append(problems, "dadata.api_key is required (set DADATA_API_KEY)")
		}
	case "metro":
		if c.Dadata.APIKey == "" {
			problems = append(problems, "dadata.api_key is required (set DADATA_API_KEY)")
		}
		if c.Dadata.SecretKey == "" {
			problems = append(problems, "dadata.secret_key is required (set DADATA_SECRET_KEY)")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Throttle.Calls < 1 {
		problems = append(problems, "throttle.calls must be > 0")
	}
	if c.Throttle.Period <= 0 {
		problems = append(problems, "throttle.period must be > 0")
	}
	if c.Dadata.TimeoutSecs < 0 {
		problems = append(problems, "dadata.timeout_secs must be >= 0")
	}
	if c.Output.DateFormat == "" {
		problems = append(problems, "output.date_format is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
