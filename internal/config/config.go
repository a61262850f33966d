package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int               `yaml:"port"`
		AllowedOrigins []string          `yaml:"allowedOrigins"`
		APIKeys        map[string]string `yaml:"apiKeys"`
		RateLimitRPS   float64           `yaml:"rateLimitRPS"`
		RateLimitBurst int               `yaml:"rateLimitBurst"`
		// audits block on the remote indexer, so the write timeout must
		// cover the whole poll window
		WriteTimeout time.Duration `yaml:"writeTimeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	VideoIndexer VideoIndexer `yaml:"videoIndexer"`
	Downloader   Downloader   `yaml:"downloader"`
	OpenAI       OpenAI       `yaml:"openai"`
	Search       Search       `yaml:"search"`
	Knowledge    Knowledge    `yaml:"knowledge"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		Prefix     string `yaml:"prefix"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Telemetry struct {
		Enabled      bool    `yaml:"enabled"`
		ServiceName  string  `yaml:"serviceName"`
		OTLPEndpoint string  `yaml:"otlpEndpoint"`
		Insecure     bool    `yaml:"insecure"`
		SampleRate   float64 `yaml:"sampleRate"`
	} `yaml:"telemetry"`
}

// VideoIndexer holds the Azure Video Indexer account and polling settings.
type VideoIndexer struct {
	AccountID      string `yaml:"accountId"`
	AccountName    string `yaml:"accountName"`
	Location       string `yaml:"location"`
	SubscriptionID string `yaml:"subscriptionId"`
	ResourceGroup  string `yaml:"resourceGroup"`

	APIBaseURL        string `yaml:"apiBaseURL"`
	ManagementBaseURL string `yaml:"managementBaseURL"`
	Language          string `yaml:"language"`
	Privacy           string `yaml:"privacy"`
	IndexingPreset    string `yaml:"indexingPreset"`

	PollInterval    time.Duration `yaml:"pollInterval"`
	PollMaxInterval time.Duration `yaml:"pollMaxInterval"`
	PollTimeout     time.Duration `yaml:"pollTimeout"`
	PollMaxAttempts int           `yaml:"pollMaxAttempts"`
	AccountTokenTTL time.Duration `yaml:"accountTokenTTL"`
	UploadTimeout   time.Duration `yaml:"uploadTimeout"`
}

// Downloader configures the yt-dlp runner.
type Downloader struct {
	Binary       string        `yaml:"binary"`
	WorkDir      string        `yaml:"workDir"`
	Format       string        `yaml:"format"`
	AllowedHosts []string      `yaml:"allowedHosts"`
	Timeout      time.Duration `yaml:"timeout"`
}

// OpenAI configures chat and embedding deployments.
type OpenAI struct {
	Endpoint            string  `yaml:"endpoint"`
	APIKey              string  `yaml:"apiKey"`
	APIVersion          string  `yaml:"apiVersion"`
	ChatDeployment      string  `yaml:"chatDeployment"`
	EmbeddingDeployment string  `yaml:"embeddingDeployment"`
	Azure               bool    `yaml:"azure"`
	JSONMode            *bool   `yaml:"jsonMode"`
	MaxTokens           int     `yaml:"maxTokens"`
	Temperature         float32 `yaml:"temperature"`
}

// Search selects and configures the vector store.
type Search struct {
	Backend    string `yaml:"backend"` // azure | postgres | mysql | sqlite
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"apiKey"`
	IndexName  string `yaml:"indexName"`
	DSN        string `yaml:"dsn"`
	Table      string `yaml:"table"`
	Dimensions int    `yaml:"dimensions"`
	TopK       int    `yaml:"topK"`
}

// Knowledge configures the ingestion job.
type Knowledge struct {
	Source       string `yaml:"source"` // dir | minio
	DocsDir      string `yaml:"docsDir"`
	ChunkSize    int    `yaml:"chunkSize"`
	ChunkOverlap int    `yaml:"chunkOverlap"`
	BatchSize    int    `yaml:"batchSize"`
	LockPath     string `yaml:"lockPath"`
}

// Load baca file config.yaml, expand ${VAR} dari environment, lalu isi default
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 1
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 5
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 3 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	vi := &c.VideoIndexer
	if vi.APIBaseURL == "" {
		vi.APIBaseURL = "https://api.videoindexer.ai"
	}
	if vi.ManagementBaseURL == "" {
		vi.ManagementBaseURL = "https://management.azure.com"
	}
	if vi.Language == "" {
		vi.Language = "en-US"
	}
	if vi.Privacy == "" {
		vi.Privacy = "Private"
	}
	if vi.IndexingPreset == "" {
		vi.IndexingPreset = "Default"
	}
	if vi.PollInterval == 0 {
		vi.PollInterval = 30 * time.Second
	}
	if vi.PollMaxInterval == 0 {
		vi.PollMaxInterval = 5 * time.Minute
	}
	if vi.PollTimeout == 0 {
		vi.PollTimeout = 2 * time.Hour
	}
	if vi.AccountTokenTTL == 0 {
		vi.AccountTokenTTL = 55 * time.Minute
	}
	if vi.UploadTimeout == 0 {
		vi.UploadTimeout = 5 * time.Minute
	}

	dl := &c.Downloader
	if dl.Binary == "" {
		dl.Binary = "yt-dlp"
	}
	if dl.Format == "" {
		dl.Format = "best"
	}
	if len(dl.AllowedHosts) == 0 {
		dl.AllowedHosts = []string{"youtube.com", "www.youtube.com", "m.youtube.com", "youtu.be"}
	}
	if dl.Timeout == 0 {
		dl.Timeout = 15 * time.Minute
	}

	if c.OpenAI.APIVersion == "" {
		c.OpenAI.APIVersion = "2024-08-01-preview"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 4096
	}
	if c.OpenAI.JSONMode == nil {
		on := true
		c.OpenAI.JSONMode = &on
	}

	if c.Search.Backend == "" {
		c.Search.Backend = "azure"
	}
	if c.Search.Table == "" {
		c.Search.Table = "knowledge_chunks"
	}
	if c.Search.Dimensions == 0 {
		c.Search.Dimensions = 1536
	}
	if c.Search.TopK == 0 {
		c.Search.TopK = 3
	}

	kb := &c.Knowledge
	if kb.Source == "" {
		kb.Source = "dir"
	}
	if kb.DocsDir == "" {
		kb.DocsDir = "data"
	}
	if kb.ChunkSize == 0 {
		kb.ChunkSize = 3000
	}
	if kb.ChunkOverlap == 0 {
		kb.ChunkOverlap = 300
	}
	if kb.BatchSize == 0 {
		kb.BatchSize = 16
	}
	if kb.LockPath == "" {
		kb.LockPath = os.TempDir() + "/drishti-ingest.lock"
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "drishti"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1
	}
}

// Validate checks the fields the audit workflow cannot run without.
func (c *Config) Validate() error {
	var errs []error
	vi := c.VideoIndexer
	for name, v := range map[string]string{
		"videoIndexer.accountId":      vi.AccountID,
		"videoIndexer.accountName":    vi.AccountName,
		"videoIndexer.location":       vi.Location,
		"videoIndexer.subscriptionId": vi.SubscriptionID,
		"videoIndexer.resourceGroup":  vi.ResourceGroup,
		"openai.endpoint":             c.OpenAI.Endpoint,
		"openai.apiKey":               c.OpenAI.APIKey,
		"openai.chatDeployment":       c.OpenAI.ChatDeployment,
		"openai.embeddingDeployment":  c.OpenAI.EmbeddingDeployment,
	} {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	if err := c.ValidateSearch(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateSearch checks the vector store section only; the ingestion job
// needs nothing else.
func (c *Config) ValidateSearch() error {
	switch c.Search.Backend {
	case "azure":
		if c.Search.Endpoint == "" || c.Search.APIKey == "" || c.Search.IndexName == "" {
			return errors.New("search: azure backend needs endpoint, apiKey and indexName")
		}
	case "postgres", "mysql", "sqlite":
		if c.Search.DSN == "" {
			return fmt.Errorf("search: %s backend needs dsn", c.Search.Backend)
		}
	default:
		return fmt.Errorf("search: unsupported backend %q", c.Search.Backend)
	}
	return nil
}

// UseJSONMode reports whether chat requests ask for a JSON object response.
func (c *Config) UseJSONMode() bool {
	return c.OpenAI.JSONMode != nil && *c.OpenAI.JSONMode
}
