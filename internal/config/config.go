package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Sink         SinkConfig         `yaml:"sink" mapstructure:"sink"`
	Connectivity ConnectivityConfig `yaml:"connectivity" mapstructure:"connectivity"`
	OCR          OCRConfig          `yaml:"ocr" mapstructure:"ocr"`
	Capture      CaptureConfig      `yaml:"capture" mapstructure:"capture"`
	Monitoring   MonitoringConfig   `yaml:"monitoring" mapstructure:"monitoring"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local record store. Path is the SQLite file;
// DatabaseURL is used by the postgres driver.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SinkConfig configures delivery to the Apps Script web app.
type SinkConfig struct {
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ConnectivityConfig configures the reachability probe.
type ConnectivityConfig struct {
	ProbeURL         string `yaml:"probe_url" mapstructure:"probe_url"`
	IntervalSecs     int    `yaml:"interval_secs" mapstructure:"interval_secs"`
	ProbeTimeoutSecs int    `yaml:"probe_timeout_secs" mapstructure:"probe_timeout_secs"`
}

// OCRConfig configures badge text recognition.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	TesseractPath string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	Language      string `yaml:"language" mapstructure:"language"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// CaptureConfig sets the badge crop region as fractions of the frame.
type CaptureConfig struct {
	CropWidth  float64 `yaml:"crop_width" mapstructure:"crop_width"`
	CropHeight float64 `yaml:"crop_height" mapstructure:"crop_height"`
}

// MonitoringConfig configures backlog alerting.
type MonitoringConfig struct {
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
	BacklogThreshold  int    `yaml:"backlog_threshold" mapstructure:"backlog_threshold"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "leadscan.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("sink.endpoint", "")
	v.SetDefault("sink.timeout_secs", 30)
	v.SetDefault("sink.rate_per_sec", 0)
	v.SetDefault("connectivity.probe_url", "https://www.google.com/generate_204")
	v.SetDefault("connectivity.interval_secs", 15)
	v.SetDefault("connectivity.probe_timeout_secs", 5)
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.mistral_api_key", "")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("capture.crop_width", 0.85)
	v.SetDefault("capture.crop_height", 0.30)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.backlog_threshold", 10)
	v.SetDefault("monitoring.check_interval_secs", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command mode depends on. Mode is one of
// "capture", "serve" or "watch".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if c.Sink.TimeoutSecs <= 0 {
		errs = append(errs, "sink.timeout_secs must be > 0")
	}
	if c.Sink.RatePerSec < 0 {
		errs = append(errs, "sink.rate_per_sec must be >= 0")
	}
	if c.Capture.CropWidth <= 0 || c.Capture.CropWidth > 1 ||
		c.Capture.CropHeight <= 0 || c.Capture.CropHeight > 1 {
		errs = append(errs, "capture crop fractions must be in (0, 1]")
	}

	switch mode {
	case "capture":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "watch":
		if c.Connectivity.IntervalSecs <= 0 {
			errs = append(errs, "connectivity.interval_secs must be > 0")
		}
		if c.Monitoring.BacklogThreshold < 0 {
			errs = append(errs, "monitoring.backlog_threshold must be >= 0")
		}
	default:
		errs = append(errs, "unknown mode "+mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
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
