package config

import (
	"errors"
	"io/fs"
	"net"
	"net/url"
	"slices"
	"strconv"
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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Apify      ApifyConfig      `yaml:"apify" mapstructure:"apify"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	CRM        CRMConfig        `yaml:"crm" mapstructure:"crm"`
	HubSpot    HubSpotConfig    `yaml:"hubspot" mapstructure:"hubspot"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Import     ImportConfig     `yaml:"import" mapstructure:"import"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres connection. DatabaseURL wins over the
// discrete connection fields when both are set.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Host        string `yaml:"host" mapstructure:"host"`
	Port        int    `yaml:"port" mapstructure:"port"`
	Name        string `yaml:"name" mapstructure:"name"`
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
	SSLMode     string `yaml:"sslmode" mapstructure:"sslmode"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ApifyConfig holds the scraping API settings and actor ids.
type ApifyConfig struct {
	Key            string        `yaml:"key" mapstructure:"key"`
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	ReactionsActor string        `yaml:"reactions_actor" mapstructure:"reactions_actor"`
	ProfileActor   string        `yaml:"profile_actor" mapstructure:"profile_actor"`
	MediaActor     string        `yaml:"media_actor" mapstructure:"media_actor"`
	PageSize       int           `yaml:"page_size" mapstructure:"page_size"`
	MaxPages       int           `yaml:"max_pages" mapstructure:"max_pages"`
	RunTimeout     time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
	RateLimit      float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds the classifier model settings.
type AnthropicConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// CRMConfig selects the CRM backend.
type CRMConfig struct {
	Backend   string `yaml:"backend" mapstructure:"backend"`
	AddToList bool   `yaml:"add_to_list" mapstructure:"add_to_list"`
}

// HubSpotConfig holds HubSpot private-app settings.
type HubSpotConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	ListID    string  `yaml:"list_id" mapstructure:"list_id"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds Salesforce JWT auth settings and the campaign
// whose members stand in for the CRM list.
type SalesforceConfig struct {
	ClientID   string  `yaml:"client_id" mapstructure:"client_id"`
	Username   string  `yaml:"username" mapstructure:"username"`
	KeyPath    string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL   string  `yaml:"login_url" mapstructure:"login_url"`
	CampaignID string  `yaml:"campaign_id" mapstructure:"campaign_id"`
	RateLimit  float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ImportConfig points at the tracking sheet export.
type ImportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PipelineConfig holds the per-stage caps and courtesy delays.
type PipelineConfig struct {
	MaxScrapes        int           `yaml:"max_scrapes" mapstructure:"max_scrapes"`
	Cooldown          time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
	ScrapeBatchSize   int           `yaml:"scrape_batch_size" mapstructure:"scrape_batch_size"`
	PostDelayMin      time.Duration `yaml:"post_delay_min" mapstructure:"post_delay_min"`
	PostDelayMax      time.Duration `yaml:"post_delay_max" mapstructure:"post_delay_max"`
	ErrorDelayMin     time.Duration `yaml:"error_delay_min" mapstructure:"error_delay_min"`
	ErrorDelayMax     time.Duration `yaml:"error_delay_max" mapstructure:"error_delay_max"`
	CompanyTitleLimit int           `yaml:"company_title_limit" mapstructure:"company_title_limit"`
	AudienceLimit     int           `yaml:"audience_limit" mapstructure:"audience_limit"`
	PostEnrichLimit   int           `yaml:"post_enrich_limit" mapstructure:"post_enrich_limit"`
	CommitEvery       int           `yaml:"commit_every" mapstructure:"commit_every"`
}

// TemporalConfig configures the scheduled workflow worker.
type TemporalConfig struct {
	HostPort      string        `yaml:"host_port" mapstructure:"host_port"`
	Namespace     string        `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue     string        `yaml:"task_queue" mapstructure:"task_queue"`
	StartDelayMax time.Duration `yaml:"start_delay_max" mapstructure:"start_delay_max"`
}

// MetricsConfig configures Prometheus export.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// ServerConfig configures the worker's HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the bare environment names used by the
// existing deployment. LEADGEN_* names take precedence.
var legacyEnv = map[string]string{
	"store.database_url": "DATABASE_URL",
	"store.host":         "DB_HOST",
	"store.port":         "DB_PORT",
	"store.name":         "DB_NAME",
	"store.user":         "DB_USER",
	"store.password":     "DB_PASSWORD",
	"store.sslmode":      "DB_SSLMODE",
	"apify.key":          "APIFY_API_KEY",
	"anthropic.key":      "ANTHROPIC_API_KEY",
	"hubspot.key":        "HUBSPOT_API_KEY",
	"hubspot.list_id":    "HUBSPOT_LIST_ID",
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "LEADGEN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", legacy)
		}
	}

	// Defaults
	v.SetDefault("store.port", 5432)
	v.SetDefault("store.sslmode", "require")
	v.SetDefault("store.max_conns", 2)
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.reactions_actor", "J9UfswnR3Kae4O6vm")
	v.SetDefault("apify.profile_actor", "VhxlqQXRwhW8H5hNV")
	v.SetDefault("apify.media_actor", "d0DhjXPjkkwm4W5xK")
	v.SetDefault("apify.page_size", 100)
	v.SetDefault("apify.max_pages", 50)
	v.SetDefault("apify.run_timeout", 10*time.Minute)
	v.SetDefault("apify.rate_limit", 2)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 256)
	v.SetDefault("anthropic.rate_limit", 2)
	v.SetDefault("crm.backend", "hubspot")
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.list_id", "246")
	v.SetDefault("hubspot.rate_limit", 5)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("import.path", "posts.xlsx")
	v.SetDefault("pipeline.max_scrapes", 5)
	v.SetDefault("pipeline.cooldown", 48*time.Hour)
	v.SetDefault("pipeline.scrape_batch_size", 5)
	v.SetDefault("pipeline.post_delay_min", 30*time.Second)
	v.SetDefault("pipeline.post_delay_max", 60*time.Second)
	v.SetDefault("pipeline.error_delay_min", 60*time.Second)
	v.SetDefault("pipeline.error_delay_max", 120*time.Second)
	v.SetDefault("pipeline.company_title_limit", 50)
	v.SetDefault("pipeline.audience_limit", 100)
	v.SetDefault("pipeline.post_enrich_limit", 50)
	v.SetDefault("pipeline.commit_every", 10)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "leadgen-pipeline")
	v.SetDefault("temporal.start_delay_max", time.Hour)
	v.SetDefault("metrics.job", "leadgen")
	v.SetDefault("server.port", 8080)
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

// DSN returns the Postgres connection string.
func (s StoreConfig) DSN() string {
	if s.DatabaseURL != "" {
		return s.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(s.Host, strconv.Itoa(s.Port)),
		Path:     "/" + s.Name,
		RawQuery: url.Values{"sslmode": {s.SSLMode}}.Encode(),
	}
	if s.User != "" {
		u.User = url.UserPassword(s.User, s.Password)
	}
	return u.String()
}

// ValidateStore checks the database settings every stage needs.
func (c *Config) ValidateStore() error {
	if c.Store.DatabaseURL != "" {
		return nil
	}
	return missing(map[string]string{
		"DB_HOST":     c.Store.Host,
		"DB_NAME":     c.Store.Name,
		"DB_USER":     c.Store.User,
		"DB_PASSWORD": c.Store.Password,
	})
}

// ValidateApify checks the scraping credentials.
func (c *Config) ValidateApify() error {
	return missing(map[string]string{"APIFY_API_KEY": c.Apify.Key})
}

// ValidateAnthropic checks the classifier credentials.
func (c *Config) ValidateAnthropic() error {
	return missing(map[string]string{"ANTHROPIC_API_KEY": c.Anthropic.Key})
}

// ValidateCRM checks the credentials of the selected CRM backend.
func (c *Config) ValidateCRM() error {
	switch c.CRM.Backend {
	case "hubspot":
		return missing(map[string]string{
			"HUBSPOT_API_KEY": c.HubSpot.Key,
			"HUBSPOT_LIST_ID": c.HubSpot.ListID,
		})
	case "salesforce":
		return missing(map[string]string{
			"salesforce.client_id":   c.Salesforce.ClientID,
			"salesforce.username":    c.Salesforce.Username,
			"salesforce.key_path":    c.Salesforce.KeyPath,
			"salesforce.campaign_id": c.Salesforce.CampaignID,
		})
	default:
		return eris.Errorf("config: unknown crm backend %q", c.CRM.Backend)
	}
}

func missing(required map[string]string) error {
	var names []string
	for name, val := range required {
		if strings.TrimSpace(val) == "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	slices.Sort(names)
	return eris.Errorf("config: missing required settings: %s", strings.Join(names, ", "))
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
