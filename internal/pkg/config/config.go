package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HomeAssistant    *HomeAssistantConfig
	Mqtt             *MqttConfig
	DatabaseURL      string
	MigrationsFolder string
	LogLevel         string
	Settings
}

type HomeAssistantConfig struct {
	Host        string
	Token       string
	Ssl         bool
	ExternalURL string
}

type MqttConfig struct {
	Host     string
	Username string
	Password string
	ClientID string
}

// Settings are the tuning knobs read straight from the environment.
type Settings struct {
	Automation AutomationConfig
	Snapshot   SnapshotConfig
	Backend    BackendConfig
	Server     ServerConfig
	Events     EventStoreConfig
}

type AutomationConfig struct {
	Sensitivity     Sensitivity   `env:"DETECTION_SENSITIVITY" envDefault:"medium"`
	DebounceSeconds float64       `env:"DEBOUNCE_SECONDS" envDefault:"2"`
	AutoDetection   bool          `env:"ENABLE_AUTO_DETECTION" envDefault:"true"`
	SnapshotDelay   time.Duration `env:"SNAPSHOT_DELAY" envDefault:"1s"`
	PromptTemplate  string        `env:"AI_PROMPT_TEMPLATE" envDefault:"professional"`
	CustomPrompt    string        `env:"CUSTOM_AI_PROMPT"`
	WeatherContext  bool          `env:"ENABLE_WEATHER_CONTEXT" envDefault:"true"`
	Location        string        `env:"DOORBELL_LOCATION" envDefault:"front_door"`
}

func (c AutomationConfig) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceSeconds * float64(time.Second))
}

type SnapshotConfig struct {
	Dir             string        `env:"SNAPSHOT_DIR" envDefault:"/config/www"`
	Quality         int           `env:"SNAPSHOT_QUALITY" envDefault:"90"`
	Timeout         time.Duration `env:"SNAPSHOT_TIMEOUT" envDefault:"10s"`
	MaxSize         int64         `env:"SNAPSHOT_MAX_SIZE" envDefault:"5242880"`
	CleanupAfter    time.Duration `env:"SNAPSHOT_CLEANUP_AFTER" envDefault:"24h"`
	CleanupSchedule string        `env:"SNAPSHOT_CLEANUP_SCHEDULE" envDefault:"@every 1h"`
}

type BackendConfig struct {
	URL              string        `env:"WHORANG_BACKEND_URL"`
	APIKey           string        `env:"BACKEND_API_KEY"`
	RetryAttempts    int           `env:"BACKEND_RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay       time.Duration `env:"BACKEND_RETRY_DELAY" envDefault:"1s"`
	DiscoveryTimeout time.Duration `env:"BACKEND_DISCOVERY_TIMEOUT" envDefault:"10s"`
	Timeout          time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`
}

type ServerConfig struct {
	Addr       string `env:"LISTEN_ADDR" envDefault:"0.0.0.0:8000"`
	APIKeyHash string `env:"API_KEY_HASH"`
}

type EventStoreConfig struct {
	Retention       time.Duration `env:"EVENT_RETENTION" envDefault:"720h"`
	CleanupSchedule string        `env:"EVENT_CLEANUP_SCHEDULE" envDefault:"CRON_TZ=UTC 0 3 * * *"`
}

// LoadSettings reads the settings from the process environment.
func LoadSettings() (Settings, error) {
	return parse(env.Options{})
}

// LoadSettingsFrom reads the settings from the given map instead of the environment.
func LoadSettingsFrom(environment map[string]string) (Settings, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	s.Automation.Sensitivity = ParseSensitivity(string(s.Automation.Sensitivity))
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

var ErrInvalidSettings = errors.New("invalid settings")

func (s Settings) Validate() error {
	var errs []error
	if s.Automation.DebounceSeconds < 0 {
		errs = append(errs, errors.New("debounce seconds must not be negative"))
	}
	if s.Automation.SnapshotDelay < 0 {
		errs = append(errs, errors.New("snapshot delay must not be negative"))
	}
	if s.Snapshot.Quality < 1 || s.Snapshot.Quality > 100 {
		errs = append(errs, fmt.Errorf("snapshot quality %d out of range 1-100", s.Snapshot.Quality))
	}
	if s.Snapshot.Timeout <= 0 {
		errs = append(errs, errors.New("snapshot timeout must be positive"))
	}
	if s.Backend.RetryAttempts < 1 {
		errs = append(errs, errors.New("backend retry attempts must be at least 1"))
	}
	if s.Backend.DiscoveryTimeout <= 0 || s.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend timeouts must be positive"))
	}
	if s.Events.Retention <= 0 {
		errs = append(errs, errors.New("event retention must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}

type Sensitivity string

const (
	SensitivityHigh   Sensitivity = "high"
	SensitivityMedium Sensitivity = "medium"
	SensitivityLow    Sensitivity = "low"
)

// ParseSensitivity normalises the level, unknown values fall back to medium.
func ParseSensitivity(s string) Sensitivity {
	switch Sensitivity(strings.ToLower(strings.TrimSpace(s))) {
	case SensitivityHigh:
		return SensitivityHigh
	case SensitivityLow:
		return SensitivityLow
	default:
		return SensitivityMedium
	}
}

// MinPriority is the lowest rule priority accepted at this sensitivity.
func (s Sensitivity) MinPriority() int {
	switch s {
	case SensitivityHigh:
		return 50
	case SensitivityLow:
		return 85
	default:
		return 70
	}
}
