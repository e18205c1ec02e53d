package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if got := strings.Join(cfg.Crawler.Sources, ","); got != "google,linkedin" {
		t.Fatalf("unexpected default sources %q", got)
	}
	if cfg.Crawler.NavigationTimeout != 60*time.Second || cfg.Crawler.ElementTimeout != 10*time.Second {
		t.Fatalf("unexpected default timeouts: %+v", cfg.Crawler)
	}
	if cfg.Crawler.MaxResults != 10 || cfg.Crawler.PagerMaxAttempts != 10 {
		t.Fatalf("unexpected default limits: %+v", cfg.Crawler)
	}
	if !cfg.Browser.Headless || !cfg.Browser.NoSandbox || !cfg.Browser.SingleProcess {
		t.Fatalf("expected headless, sandbox-less, single-process browser by default: %+v", cfg.Browser)
	}
	if cfg.DB.Table != "job_listings" {
		t.Fatalf("unexpected default table %q", cfg.DB.Table)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawler:
  keywords: ["golang", "platform engineer"]
  sources: ["linkedin"]
  user_agent: real-agent
  navigation_timeout: 45s
  element_timeout: 5s
  load_more_delay: 1s
  pager_max_attempts: 3
  pager_delay: 500ms
  max_results: 0
browser:
  headless: false
  exec_path: /usr/bin/chromium
  single_process: true
server:
  port: 9090
  api_key: secret
schedule:
  enabled: true
  daily_at: "07:30"
  timezone: UTC
logging:
  development: false
  level: warn
output:
  local_dir: ./out
  pubsub_project: proj
  pubsub_topic: listings
db:
  dsn: postgres://localhost/jobs
  table: listings
lock:
  path: /tmp/jobcrawler.lock
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := strings.Join(cfg.Crawler.Keywords, "|"); got != "golang|platform engineer" {
		t.Fatalf("unexpected keywords %q", got)
	}
	if len(cfg.Crawler.Sources) != 1 || cfg.Crawler.Sources[0] != "linkedin" {
		t.Fatalf("unexpected sources %v", cfg.Crawler.Sources)
	}
	if cfg.Crawler.UserAgent != "real-agent" {
		t.Fatalf("unexpected user agent %q", cfg.Crawler.UserAgent)
	}
	if cfg.Crawler.NavigationTimeout != 45*time.Second || cfg.Crawler.PagerDelay != 500*time.Millisecond {
		t.Fatalf("durations not parsed: %+v", cfg.Crawler)
	}
	if cfg.Crawler.MaxResults != 0 {
		t.Fatalf("expected unlimited results, got %d", cfg.Crawler.MaxResults)
	}
	if cfg.Browser.Headless || !cfg.Browser.SingleProcess || cfg.Browser.ExecPath != "/usr/bin/chromium" {
		t.Fatalf("unexpected browser config %+v", cfg.Browser)
	}
	if cfg.Server.Port != 9090 || cfg.Server.APIKey != "secret" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if !cfg.Schedule.Enabled || cfg.Schedule.DailyAt != "07:30" || cfg.Schedule.Timezone != "UTC" {
		t.Fatalf("unexpected schedule %+v", cfg.Schedule)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
	if cfg.Output.PubSubTopic != "listings" || cfg.DB.Table != "listings" || cfg.Lock.Path != "/tmp/jobcrawler.lock" {
		t.Fatalf("unexpected outputs %+v %+v %+v", cfg.Output, cfg.DB, cfg.Lock)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JOBCRAWLER_SERVER_PORT", "7070")
	t.Setenv("JOBCRAWLER_CRAWLER_KEYWORDS", "go,rust")
	t.Setenv("JOBCRAWLER_CRAWLER_ELEMENT_TIMEOUT", "3s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if got := strings.Join(cfg.Crawler.Keywords, "|"); got != "go|rust" {
		t.Fatalf("unexpected env keywords %q", got)
	}
	if cfg.Crawler.ElementTimeout != 3*time.Second {
		t.Fatalf("unexpected env element timeout %v", cfg.Crawler.ElementTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Crawler: CrawlerConfig{NavigationTimeout: time.Second, ElementTimeout: time.Second},
		Server:  ServerConfig{Port: 8080},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"port":       {func(c *Config) { c.Server.Port = 0 }, "server.port"},
		"navigation": {func(c *Config) { c.Crawler.NavigationTimeout = 0 }, "navigation_timeout"},
		"element":    {func(c *Config) { c.Crawler.ElementTimeout = -time.Second }, "element_timeout"},
		"results":    {func(c *Config) { c.Crawler.MaxResults = -1 }, "max_results"},
		"pager":      {func(c *Config) { c.Crawler.PagerMaxAttempts = -1 }, "pager_max_attempts"},
		"schedule time": {func(c *Config) {
			c.Schedule = ScheduleConfig{Enabled: true, DailyAt: "25:00"}
			c.Crawler.Keywords = []string{"go"}
		}, "schedule.daily_at"},
		"schedule keywords": {func(c *Config) {
			c.Schedule = ScheduleConfig{Enabled: true, DailyAt: "09:00"}
		}, "crawler.keywords"},
		"schedule timezone": {func(c *Config) {
			c.Schedule = ScheduleConfig{Enabled: true, DailyAt: "09:00", Timezone: "Mars/Olympus_Mons"}
			c.Crawler.Keywords = []string{"go"}
		}, "schedule.timezone"},
		"pubsub pair": {func(c *Config) { c.Output.PubSubProject = "proj" }, "pubsub_topic"},
		"db table":    {func(c *Config) { c.DB.DSN = "postgres://x" }, "db.table"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestScheduleLocation(t *testing.T) {
	t.Parallel()

	loc, err := ScheduleConfig{}.Location()
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if loc != time.Local {
		t.Fatalf("expected server local zone by default, got %v", loc)
	}

	loc, err = ScheduleConfig{Timezone: "UTC"}.Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("expected UTC, got %v (%v)", loc, err)
	}
}
