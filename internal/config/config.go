package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/devdash/internal/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "DEVDASH"
	configEnv       = "DEVDASH_CONFIG"
	configName      = "devdash"
	configType      = "toml"
	systemConfig    = "/etc/devdash"
	DefaultLogLevel = "info"

	DefaultInterval        = 10 * time.Second
	DefaultWeatherInterval = 15 * time.Minute
	DefaultStepGoal        = 6000

	minInterval        = time.Second
	maxInterval        = 10 * time.Minute
	minWeatherInterval = time.Minute
)

type Config struct {
	LogLevel      string `mapstructure:"log_level"       toml:"log_level"`
	LogFile       string `mapstructure:"log_file"        toml:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" toml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" toml:"log_max_backups"`
	Demo          bool   `mapstructure:"demo"            toml:"demo"`

	Sampler SamplerConfig `mapstructure:"sampler" toml:"sampler"`
	Steps   StepsConfig   `mapstructure:"steps"   toml:"steps"`
	Battery BatteryConfig `mapstructure:"battery" toml:"battery"`
	Storage StorageConfig `mapstructure:"storage" toml:"storage"`
	Weather WeatherConfig `mapstructure:"weather" toml:"weather"`
	Notify  NotifyConfig  `mapstructure:"notify"  toml:"notify"`
	Store   StoreConfig   `mapstructure:"store"   toml:"store"`
	History HistoryConfig `mapstructure:"history" toml:"history"`
	Server  ServerConfig  `mapstructure:"server"  toml:"server"`
}

type SamplerConfig struct {
	Interval        time.Duration `mapstructure:"interval"         toml:"interval"`
	WeatherInterval time.Duration `mapstructure:"weather_interval" toml:"weather_interval"`
	AdapterTimeout  time.Duration `mapstructure:"adapter_timeout"  toml:"adapter_timeout"`
}

type StepsConfig struct {
	DefaultGoal int `mapstructure:"default_goal" toml:"default_goal"`
}

type BatteryConfig struct {
	SupplyPath string `mapstructure:"supply_path" toml:"supply_path"`
}

type StorageConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

type WeatherConfig struct {
	Enabled       bool          `mapstructure:"enabled"         toml:"enabled"`
	Locate        string        `mapstructure:"locate"          toml:"locate"`
	Latitude      float64       `mapstructure:"latitude"        toml:"latitude"`
	Longitude     float64       `mapstructure:"longitude"       toml:"longitude"`
	ForecastURL   string        `mapstructure:"forecast_url"    toml:"forecast_url"`
	GeocodeURL    string        `mapstructure:"geocode_url"     toml:"geocode_url"`
	IPLocationURL string        `mapstructure:"ip_location_url" toml:"ip_location_url"`
	Timeout       time.Duration `mapstructure:"timeout"         toml:"timeout"`
}

type NotifyConfig struct {
	Desktop   bool `mapstructure:"desktop"    toml:"desktop"`
	QueueSize int  `mapstructure:"queue_size" toml:"queue_size"`
}

type StoreConfig struct {
	DBPath string `mapstructure:"db_path" toml:"db_path"`
}

type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"       toml:"enabled"`
	DBPath       string `mapstructure:"db_path"       toml:"db_path"`
	BatchSize    int    `mapstructure:"batch_size"    toml:"batch_size"`
	BatchTimeout int    `mapstructure:"batch_timeout" toml:"batch_timeout"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind" toml:"bind"`
}

// Locator modes for the weather position.
const (
	LocateStatic   = "static"
	LocateIP       = "ip"
	LocateDisabled = "disabled"
)

// Default returns the configuration used when no file, env or flag sets a value.
func Default() Config {
	return Config{
		LogLevel:      DefaultLogLevel,
		LogMaxSizeMB:  10,
		LogMaxBackups: 5,
		Sampler: SamplerConfig{
			Interval:        DefaultInterval,
			WeatherInterval: DefaultWeatherInterval,
		},
		Steps: StepsConfig{
			DefaultGoal: DefaultStepGoal,
		},
		Battery: BatteryConfig{
			SupplyPath: "/sys/class/power_supply",
		},
		Storage: StorageConfig{
			Path: "/",
		},
		Weather: WeatherConfig{
			Enabled:       true,
			Locate:        LocateIP,
			ForecastURL:   "https://api.open-meteo.com/v1/forecast",
			GeocodeURL:    "https://api.bigdatacloud.net/data/reverse-geocode-client",
			IPLocationURL: "http://ip-api.com/json",
			Timeout:       10 * time.Second,
		},
		Notify: NotifyConfig{
			QueueSize: 16,
		},
		Store: StoreConfig{
			DBPath: "/var/lib/devdash/settings.db",
		},
		History: HistoryConfig{
			DBPath:       "/var/lib/devdash/history.db",
			BatchSize:    10,
			BatchTimeout: 60,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8787",
		},
	}
}

// Load reads configuration from the config file, the environment and the
// given command line arguments, in increasing order of precedence.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()
	def := Default()

	fs := pflag.NewFlagSet("devdash", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", os.Getenv(configEnv), "Path to config TOML")
	fs.String("log-level", def.LogLevel, "Log level (debug, info, warning, error)")
	fs.String("log-file", def.LogFile, "Also write JSON logs to this rotating file")
	fs.Bool("demo", def.Demo, "Simulate battery and pedometer readings")
	fs.Duration("interval", def.Sampler.Interval, "Interval between telemetry passes")
	fs.Duration("weather-interval", def.Sampler.WeatherInterval, "Interval between weather passes")
	fs.Int("goal", def.Steps.DefaultGoal, "Default daily step goal")
	fs.String("bind", def.Server.Bind, "HTTP bind address")
	fs.Bool("desktop-notify", def.Notify.Desktop, "Deliver notifications through notify-send")
	fs.Bool("history", def.History.Enabled, "Record merged samples to the history database")

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v, def)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"log_level":                "log-level",
		"log_file":                 "log-file",
		"demo":                     "demo",
		"sampler.interval":         "interval",
		"sampler.weather_interval": "weather-interval",
		"steps.default_goal":       "goal",
		"server.bind":              "bind",
		"notify.desktop":           "desktop-notify",
		"history.enabled":          "history",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetConfigType(configType)
	if *configPath != "" {
		v.SetConfigFile(*configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(systemConfig)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("log_max_size_mb", def.LogMaxSizeMB)
	v.SetDefault("log_max_backups", def.LogMaxBackups)
	v.SetDefault("demo", def.Demo)
	v.SetDefault("sampler.interval", def.Sampler.Interval)
	v.SetDefault("sampler.weather_interval", def.Sampler.WeatherInterval)
	v.SetDefault("sampler.adapter_timeout", def.Sampler.AdapterTimeout)
	v.SetDefault("steps.default_goal", def.Steps.DefaultGoal)
	v.SetDefault("battery.supply_path", def.Battery.SupplyPath)
	v.SetDefault("storage.path", def.Storage.Path)
	v.SetDefault("weather.enabled", def.Weather.Enabled)
	v.SetDefault("weather.locate", def.Weather.Locate)
	v.SetDefault("weather.latitude", def.Weather.Latitude)
	v.SetDefault("weather.longitude", def.Weather.Longitude)
	v.SetDefault("weather.forecast_url", def.Weather.ForecastURL)
	v.SetDefault("weather.geocode_url", def.Weather.GeocodeURL)
	v.SetDefault("weather.ip_location_url", def.Weather.IPLocationURL)
	v.SetDefault("weather.timeout", def.Weather.Timeout)
	v.SetDefault("notify.desktop", def.Notify.Desktop)
	v.SetDefault("notify.queue_size", def.Notify.QueueSize)
	v.SetDefault("store.db_path", def.Store.DBPath)
	v.SetDefault("history.enabled", def.History.Enabled)
	v.SetDefault("history.db_path", def.History.DBPath)
	v.SetDefault("history.batch_size", def.History.BatchSize)
	v.SetDefault("history.batch_timeout", def.History.BatchTimeout)
	v.SetDefault("server.bind", def.Server.Bind)
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Sampler.Interval < minInterval || c.Sampler.Interval > maxInterval {
		return errFactory.WithData(errors.ErrInvalidInterval,
			fmt.Sprintf("sampler.interval must be between %s and %s", minInterval, maxInterval))
	}

	if c.Sampler.WeatherInterval < minWeatherInterval {
		return errFactory.WithData(errors.ErrInvalidInterval,
			fmt.Sprintf("sampler.weather_interval must be at least %s", minWeatherInterval))
	}

	if c.Sampler.AdapterTimeout < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "sampler.adapter_timeout must be >= 0")
	}

	if c.Steps.DefaultGoal <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "steps.default_goal must be > 0")
	}

	switch c.Weather.Locate {
	case LocateStatic:
		if c.Weather.Latitude < -90 || c.Weather.Latitude > 90 ||
			c.Weather.Longitude < -180 || c.Weather.Longitude > 180 {
			return errFactory.WithData(errors.ErrInvalidConfig, "weather coordinates out of range")
		}
	case LocateIP, LocateDisabled:
	default:
		return errFactory.WithData(errors.ErrInvalidConfig,
			fmt.Sprintf("weather.locate must be one of %s, %s, %s", LocateStatic, LocateIP, LocateDisabled))
	}

	if c.Store.DBPath == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "store.db_path")
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "history.db_path")
	}

	if c.Notify.QueueSize <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "notify.queue_size must be > 0")
	}

	return nil
}

// DefaultTOML renders the default configuration as a TOML document.
// Durations are written as strings so the file reads the way users edit it.
func DefaultTOML() ([]byte, error) {
	def := Default()

	doc := map[string]any{
		"log_level":       def.LogLevel,
		"log_file":        def.LogFile,
		"log_max_size_mb": def.LogMaxSizeMB,
		"log_max_backups": def.LogMaxBackups,
		"demo":            def.Demo,
		"sampler": map[string]any{
			"interval":         def.Sampler.Interval.String(),
			"weather_interval": def.Sampler.WeatherInterval.String(),
			"adapter_timeout":  def.Sampler.AdapterTimeout.String(),
		},
		"steps":   def.Steps,
		"battery": def.Battery,
		"storage": def.Storage,
		"weather": map[string]any{
			"enabled":         def.Weather.Enabled,
			"locate":          def.Weather.Locate,
			"latitude":        def.Weather.Latitude,
			"longitude":       def.Weather.Longitude,
			"forecast_url":    def.Weather.ForecastURL,
			"geocode_url":     def.Weather.GeocodeURL,
			"ip_location_url": def.Weather.IPLocationURL,
			"timeout":         def.Weather.Timeout.String(),
		},
		"notify":  def.Notify,
		"store":   def.Store,
		"history": def.History,
		"server":  def.Server,
	}

	return toml.Marshal(doc)
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}
