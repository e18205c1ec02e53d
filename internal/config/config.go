// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/job-listing-crawler/internal/scheduler"
)

// EnvPrefix prefixes every environment override, e.g. JOBCRAWLER_SERVER_PORT.
const EnvPrefix = "JOBCRAWLER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
	DB       DBConfig       `mapstructure:"db"`
	Lock     LockConfig     `mapstructure:"lock"`
}

// CrawlerConfig governs what is searched and how patiently.
type CrawlerConfig struct {
	Keywords          []string      `mapstructure:"keywords"`
	Sources           []string      `mapstructure:"sources"`
	UserAgent         string        `mapstructure:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	LoadMoreDelay     time.Duration `mapstructure:"load_more_delay"`
	PagerMaxAttempts  int           `mapstructure:"pager_max_attempts"`
	PagerDelay        time.Duration `mapstructure:"pager_delay"`
	MaxResults        int           `mapstructure:"max_results"`
}

// BrowserConfig controls how Chrome is launched.
type BrowserConfig struct {
	Headless      bool   `mapstructure:"headless"`
	ExecPath      string `mapstructure:"exec_path"`
	NoSandbox     bool   `mapstructure:"no_sandbox"`
	SingleProcess bool   `mapstructure:"single_process"`
}

// ServerConfig controls HTTP server behavior. An empty APIKey disables auth.
type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// ScheduleConfig enables the daily crawl. DailyAt is read in Timezone, an
// IANA zone name; empty means the server's local zone.
type ScheduleConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DailyAt  string `mapstructure:"daily_at"`
	Timezone string `mapstructure:"timezone"`
}

// Location resolves Timezone.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// OutputConfig selects where crawl results are written. Empty values disable
// the corresponding sink.
type OutputConfig struct {
	LocalDir      string `mapstructure:"local_dir"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	PubSubProject string `mapstructure:"pubsub_project"`
	PubSubTopic   string `mapstructure:"pubsub_topic"`
}

// DBConfig controls access to the listing store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LockConfig names a file used to keep crawls single-flight across processes.
type LockConfig struct {
	Path string `mapstructure:"path"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.keywords", []string{})
	v.SetDefault("crawler.sources", []string{"google", "linkedin"})
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("crawler.navigation_timeout", 60*time.Second)
	v.SetDefault("crawler.element_timeout", 10*time.Second)
	v.SetDefault("crawler.fetch_timeout", time.Duration(0))
	v.SetDefault("crawler.load_more_delay", 2*time.Second)
	v.SetDefault("crawler.pager_max_attempts", 10)
	v.SetDefault("crawler.pager_delay", 2*time.Second)
	v.SetDefault("crawler.max_results", 10)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.single_process", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.daily_at", "09:00")
	v.SetDefault("schedule.timezone", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("output.local_dir", "")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.pubsub_project", "")
	v.SetDefault("output.pubsub_topic", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "job_listings")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("lock.path", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be > 0"))
	}
	if c.Crawler.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("crawler.navigation_timeout must be > 0"))
	}
	if c.Crawler.ElementTimeout <= 0 {
		errs = append(errs, errors.New("crawler.element_timeout must be > 0"))
	}
	if c.Crawler.PagerMaxAttempts < 0 {
		errs = append(errs, errors.New("crawler.pager_max_attempts must be >= 0"))
	}
	if c.Crawler.MaxResults < 0 {
		errs = append(errs, errors.New("crawler.max_results must be >= 0"))
	}
	if c.Schedule.Enabled {
		if _, _, err := scheduler.ParseClock(c.Schedule.DailyAt); err != nil {
			errs = append(errs, fmt.Errorf("schedule.daily_at: %w", err))
		}
		if len(c.Crawler.Keywords) == 0 {
			errs = append(errs, errors.New("crawler.keywords must be set when schedule is enabled"))
		}
		if _, err := c.Schedule.Location(); err != nil {
			errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
		}
	}
	if (c.Output.PubSubProject == "") != (c.Output.PubSubTopic == "") {
		errs = append(errs, errors.New("output.pubsub_project and output.pubsub_topic must be set together"))
	}
	if c.DB.DSN != "" && c.DB.Table == "" {
		errs = append(errs, errors.New("db.table must be set when db.dsn is set"))
	}
	return errors.Join(errs...)
}
