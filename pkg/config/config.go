package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:pressbrief.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Schedule struct {
		IngestInterval int    `yaml:"ingest_interval" json:"ingest_interval" jsonschema:"default=30,description=Feed ingestion interval in minutes"`
		ScoreInterval  int    `yaml:"score_interval" json:"score_interval" jsonschema:"default=15,description=Article scoring interval in minutes"`
		ImageInterval  int    `yaml:"image_interval" json:"image_interval" jsonschema:"default=5,description=Image generation interval in minutes"`
		PipelineHour   int    `yaml:"pipeline_hour" json:"pipeline_hour" jsonschema:"default=6,description=Hour of day the daily selection pipeline runs"`
		SendHour       int    `yaml:"send_hour" json:"send_hour" jsonschema:"default=8,description=Hour of day the compiled issue is sent"`
		MaxWorkers     int    `yaml:"max_workers" json:"max_workers" jsonschema:"default=5,description=Maximum concurrent workers"`
		Weekdays       []int  `yaml:"weekdays" json:"weekdays,omitempty" jsonschema:"description=Days of week (0=Sunday) with deliveries; default Monday-Friday"`
		Timezone       string `yaml:"timezone" json:"timezone" jsonschema:"default=UTC,description=Timezone for schedule evaluation"`
	} `yaml:"schedule" json:"schedule" jsonschema:"description=Scheduler configuration"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for judge calls"`

	Image ImageConfig `yaml:"image" json:"image" jsonschema:"description=Image generation configuration"`

	Email EmailConfig `yaml:"email" json:"email" jsonschema:"description=Email transport configuration"`

	Ingest IngestConfig `yaml:"ingest" json:"ingest" jsonschema:"description=Feed ingestion and content extraction configuration"`

	Newsletter NewsletterConfig `yaml:"newsletter" json:"newsletter" jsonschema:"description=Editorial pipeline settings"`
}

// LLMConfig holds LLM configuration shared by all judge calls
type LLMConfig struct {
	Endpoint    string        `yaml:"endpoint" json:"endpoint" jsonschema:"required,description=OpenAI-compatible API endpoint"`
	APIKey      string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model       string        `yaml:"model" json:"model" jsonschema:"required,description=Model name (e.g. gpt-4o-mini)"`
	Temperature float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.3,description=Temperature for response generation"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=1000,description=Maximum tokens in response"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	UseJSONMode bool          `yaml:"use_json_mode" json:"use_json_mode" jsonschema:"default=false,description=Use JSON response format (not all models support this)"`

	Scoring ScoringConfig `yaml:"scoring" json:"scoring" jsonschema:"description=Interest scoring settings"`
}

// ScoringConfig holds interest-scoring settings
type ScoringConfig struct {
	MinInterest float64 `yaml:"min_interest" json:"min_interest" jsonschema:"default=6.0,minimum=0,maximum=10,description=Minimum interest score for an article to become a candidate"`
	BatchSize   int     `yaml:"batch_size" json:"batch_size" jsonschema:"default=10,minimum=1,description=Number of articles to score in one request"`
}

// ImageConfig holds image generation settings
type ImageConfig struct {
	Model            string        `yaml:"model" json:"model" jsonschema:"default=gpt-image-1,description=Primary image generation model"`
	Size             string        `yaml:"size" json:"size" jsonschema:"default=1024x1024,description=Generated image size"`
	FallbackEndpoint string        `yaml:"fallback_endpoint" json:"fallback_endpoint" jsonschema:"description=Secondary generator endpoint tried when the primary fails"`
	FallbackAPIKey   string        `yaml:"fallback_api_key" json:"fallback_api_key" jsonschema:"description=API key for the secondary generator"`
	TargetWidth      int           `yaml:"target_width" json:"target_width" jsonschema:"default=600,description=Width images are resized to before upload"`
	HostEndpoint     string        `yaml:"host_endpoint" json:"host_endpoint" jsonschema:"description=Image hosting upload endpoint"`
	HostAPIKey       string        `yaml:"host_api_key" json:"host_api_key" jsonschema:"description=API key for the image host"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Per-generation timeout"`
}

// EmailConfig holds email transport settings
type EmailConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=Marketing platform API endpoint"`
	APIKey   string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key for the email transport"`
	From     string        `yaml:"from" json:"from" jsonschema:"description=Sender address"`
	Lists    []string      `yaml:"lists" json:"lists,omitempty" jsonschema:"description=Recipient list identifiers"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Request timeout"`
}

// IngestConfig holds feed ingestion and content extraction settings
type IngestConfig struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Per-feed fetch timeout"`
	MaxConcurrent int           `yaml:"max_concurrent" json:"max_concurrent" jsonschema:"default=5,description=Maximum concurrent feed fetches"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Pressbrief/1.0,description=User agent for HTTP requests"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum extracted text length to consider valid"`
}

// NewsletterConfig holds editorial pipeline settings
type NewsletterConfig struct {
	Name           string  `yaml:"name" json:"name" jsonschema:"default=Pressbrief Daily,description=Newsletter display name"`
	MinCredibility float64 `yaml:"min_credibility" json:"min_credibility" jsonschema:"default=3.0,minimum=0,maximum=10,description=Minimum source credibility; lower-ranked sources are skipped"`
	CleanMaxChars  int     `yaml:"clean_max_chars" json:"clean_max_chars" jsonschema:"default=2000,description=Fallback truncation length when LLM content cleaning fails"`
	RecentSubjects int     `yaml:"recent_subjects" json:"recent_subjects" jsonschema:"default=20,description=How many recent headlines and subjects the judges see to steer away from repeats"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:pressbrief.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for schedule
	if cfg.Schedule.IngestInterval == 0 {
		cfg.Schedule.IngestInterval = 30
	}
	if cfg.Schedule.ScoreInterval == 0 {
		cfg.Schedule.ScoreInterval = 15
	}
	if cfg.Schedule.ImageInterval == 0 {
		cfg.Schedule.ImageInterval = 5
	}
	if cfg.Schedule.PipelineHour == 0 {
		cfg.Schedule.PipelineHour = 6
	}
	if cfg.Schedule.SendHour == 0 {
		cfg.Schedule.SendHour = 8
	}
	if cfg.Schedule.MaxWorkers == 0 {
		cfg.Schedule.MaxWorkers = 5
	}
	if len(cfg.Schedule.Weekdays) == 0 {
		cfg.Schedule.Weekdays = []int{1, 2, 3, 4, 5} // monday through friday
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "UTC"
	}

	// set defaults for LLM
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.Scoring.MinInterest == 0 {
		cfg.LLM.Scoring.MinInterest = 6.0
	}
	if cfg.LLM.Scoring.BatchSize == 0 {
		cfg.LLM.Scoring.BatchSize = 10
	}

	// set defaults for image generation
	if cfg.Image.Model == "" {
		cfg.Image.Model = "gpt-image-1"
	}
	if cfg.Image.Size == "" {
		cfg.Image.Size = "1024x1024"
	}
	if cfg.Image.TargetWidth == 0 {
		cfg.Image.TargetWidth = 600
	}
	if cfg.Image.Timeout == 0 {
		cfg.Image.Timeout = 60 * time.Second
	}

	// set defaults for email
	if cfg.Email.Timeout == 0 {
		cfg.Email.Timeout = 30 * time.Second
	}

	// set defaults for ingestion
	if cfg.Ingest.Timeout == 0 {
		cfg.Ingest.Timeout = 30 * time.Second
	}
	if cfg.Ingest.MaxConcurrent == 0 {
		cfg.Ingest.MaxConcurrent = 5
	}
	if cfg.Ingest.UserAgent == "" {
		cfg.Ingest.UserAgent = "Pressbrief/1.0"
	}
	if cfg.Ingest.MinTextLength == 0 {
		cfg.Ingest.MinTextLength = 100
	}

	// set defaults for newsletter rules
	if cfg.Newsletter.Name == "" {
		cfg.Newsletter.Name = "Pressbrief Daily"
	}
	if cfg.Newsletter.MinCredibility == 0 {
		cfg.Newsletter.MinCredibility = 3.0
	}
	if cfg.Newsletter.CleanMaxChars == 0 {
		cfg.Newsletter.CleanMaxChars = 2000
	}
	if cfg.Newsletter.RecentSubjects == 0 {
		cfg.Newsletter.RecentSubjects = 20
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	// validate LLM config
	if cfg.LLM.Endpoint == "" {
		return fmt.Errorf("llm.endpoint is required")
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if cfg.LLM.Scoring.MinInterest < 0 || cfg.LLM.Scoring.MinInterest > 10 {
		return fmt.Errorf("llm.scoring.min_interest must be between 0 and 10")
	}
	if cfg.LLM.Scoring.BatchSize < 1 {
		return fmt.Errorf("llm.scoring.batch_size must be at least 1")
	}

	// validate schedule config
	if cfg.Schedule.PipelineHour < 0 || cfg.Schedule.PipelineHour > 23 {
		return fmt.Errorf("schedule.pipeline_hour must be between 0 and 23")
	}
	if cfg.Schedule.SendHour < 0 || cfg.Schedule.SendHour > 23 {
		return fmt.Errorf("schedule.send_hour must be between 0 and 23")
	}
	for _, wd := range cfg.Schedule.Weekdays {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("schedule.weekdays entries must be between 0 and 6")
		}
	}
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone is invalid: %w", err)
	}

	// validate newsletter config
	if cfg.Newsletter.MinCredibility < 0 || cfg.Newsletter.MinCredibility > 10 {
		return fmt.Errorf("newsletter.min_credibility must be between 0 and 10")
	}

	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	return nil
}

// Location resolves the configured schedule timezone, falling back to UTC.
// validate rejects unknown zone names at load time, so the fallback only
// covers zones missing from the host tzdata.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DeliveryDay reports whether the schedule delivers on the given weekday.
func (c *Config) DeliveryDay(wd time.Weekday) bool {
	for _, d := range c.Schedule.Weekdays {
		if time.Weekday(d) == wd {
			return true
		}
	}
	return false
}
