package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port      int              `json:"port"`
	LogConfig logger.LogConfig `json:"log_config"`
	Database  DatabaseConfig   `json:"database"`
	AI        AIConfig         `json:"ai"`
	Assets    AssetStoreConfig `json:"assets"`
	Site      SiteConfig       `json:"site"`
	CORS      []string         `json:"cors"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	Data           interface{} `json:"data"`
	Model          string      `json:"model"`
	EmbedModel     string      `json:"embed_model"`
	EmbedDimension int         `json:"embed_dimension"`
	Timeout        int         `json:"timeout"`
	MaxQPS         float64     `json:"max_qps"`
}

type AssetStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type LibraryConfig struct {
	Name   string   `json:"name"`
	Weight *float64 `json:"weight,omitempty"`
}

type IntentConfig struct {
	PositiveThreshold    float32 `json:"positive_threshold"`
	ContrastiveThreshold float32 `json:"contrastive_threshold"`
}

type FacilityConfig struct {
	CSVKey      string  `json:"csv_key"`
	RadiusMiles float64 `json:"radius_miles"`
	FallbackURL string  `json:"fallback_url"`
}

// SiteConfig is the static per-deployment record: which collections exist,
// which libraries each one queries and at what weight, plus generation
// defaults and quota. Loaded once before request handling, read-only after.
type SiteConfig struct {
	ID                 string                     `json:"id"`
	Collections        map[string][]LibraryConfig `json:"collections"`
	MediaTypes         []string                   `json:"media_types"`
	DefaultSources     int                        `json:"default_sources"`
	MaxSources         int                        `json:"max_sources"`
	DailyQuota         int                        `json:"daily_quota"`
	DefaultModel       string                     `json:"default_model"`
	DefaultTemperature float32                    `json:"default_temperature"`
	SystemPrompt       string                     `json:"system_prompt"`
	Intent             IntentConfig               `json:"intent"`
	Facility           FacilityConfig             `json:"facility"`
	IPGeoURL           string                     `json:"ip_geo_url"`
	GeocodeURL         string                     `json:"geocode_url"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Data == nil {
		return nil, fmt.Errorf("ai.data is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.Assets.Type == "" {
		cfg.Assets.Type = "local"
	}
	if cfg.Site.ID == "" {
		return nil, fmt.Errorf("site.id is required")
	}
	if len(cfg.Site.Collections) == 0 {
		return nil, fmt.Errorf("site.collections is required")
	}
	if len(cfg.Site.MediaTypes) == 0 {
		cfg.Site.MediaTypes = []string{"text", "audio", "youtube"}
	}
	if cfg.Site.DefaultSources == 0 {
		cfg.Site.DefaultSources = 4
	}
	if cfg.Site.MaxSources == 0 {
		cfg.Site.MaxSources = 25
	}
	if cfg.Site.DefaultModel == "" {
		cfg.Site.DefaultModel = cfg.AI.Model
	}
	if cfg.Site.Intent.PositiveThreshold == 0 {
		cfg.Site.Intent.PositiveThreshold = 0.37
	}
	if cfg.Site.Facility.RadiusMiles == 0 {
		cfg.Site.Facility.RadiusMiles = 150
	}
	return &cfg, nil
}
