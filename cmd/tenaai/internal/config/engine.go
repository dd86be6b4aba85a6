package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// EngineService is the service file holding engine settings.
const EngineService = "engine"

// Providers and backends accepted in engine.yaml.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderDashScope = "dashscope"
	ProviderHashing   = "hashing"

	StorageLocal = "local"
	StorageS3    = "s3"
)

// Engine is the engine.yaml service config. Zero fields take defaults;
// string values starting with "$" are expanded from the environment.
type Engine struct {
	// Snapshot location.
	PersistDir        string `yaml:"persist_dir,omitempty"`
	Storage           string `yaml:"storage,omitempty"`
	S3Bucket          string `yaml:"s3_bucket,omitempty"`
	S3Prefix          string `yaml:"s3_prefix,omitempty"`
	S3Region          string `yaml:"s3_region,omitempty"`
	S3Endpoint        string `yaml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `yaml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key,omitempty"`
	Index             string `yaml:"index,omitempty"`

	// Embedding service.
	EmbeddingProvider string `yaml:"embedding_provider,omitempty"`
	EmbeddingModel    string `yaml:"embedding_model,omitempty"`
	EmbeddingAPIKey   string `yaml:"embedding_api_key,omitempty"`
	EmbeddingBaseURL  string `yaml:"embedding_base_url,omitempty"`
	EmbeddingDim      int    `yaml:"embedding_dim,omitempty"`
	CacheDir          string `yaml:"cache_dir,omitempty"`

	// LLM service.
	LLMProvider string  `yaml:"llm_provider,omitempty"`
	LLMModel    string  `yaml:"llm_model,omitempty"`
	LLMBaseURL  string  `yaml:"llm_base_url,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	TopK        int     `yaml:"top_k,omitempty"`

	// TimeoutSeconds bounds each embedding and LLM request.
	TimeoutSeconds int `yaml:"timeout,omitempty"`
}

// Engine defaults.
const (
	DefaultPersistDir  = "vector_store"
	DefaultTopK        = 5
	DefaultTemperature = 0.1
	DefaultTimeout     = 60
)

// LoadEngine reads engine.yaml from contextDir, then applies environment
// overrides and defaults. An empty contextDir or a missing file yields
// the defaults.
func LoadEngine(contextDir string) (*Engine, error) {
	e := &Engine{}
	if contextDir != "" {
		loaded, err := LoadService[Engine](contextDir, EngineService)
		switch {
		case err == nil:
			e = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	e.ApplyEnv(os.Getenv)
	e.ApplyDefaults()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// ApplyEnv expands "$VAR" values and fills unset credentials from the
// provider's conventional environment variables.
func (e *Engine) ApplyEnv(getenv func(string) string) {
	expand := func(s string) string {
		if strings.HasPrefix(s, "$") {
			return os.Expand(s, getenv)
		}
		return s
	}
	e.APIKey = expand(e.APIKey)
	e.EmbeddingAPIKey = expand(e.EmbeddingAPIKey)
	e.S3AccessKeyID = expand(e.S3AccessKeyID)
	e.S3SecretAccessKey = expand(e.S3SecretAccessKey)
	e.PersistDir = expand(e.PersistDir)
	e.CacheDir = expand(e.CacheDir)

	first := func(keys ...string) string {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				return v
			}
		}
		return ""
	}
	if e.APIKey == "" {
		if e.LLMProvider == ProviderGemini {
			e.APIKey = first("GEMINI_API_KEY", "GOOGLE_API_KEY")
		} else {
			e.APIKey = first("DEEPSEEK_API_KEY", "OPENAI_API_KEY")
		}
	}
	if e.EmbeddingAPIKey == "" {
		switch e.EmbeddingProvider {
		case ProviderOpenAI:
			e.EmbeddingAPIKey = getenv("OPENAI_API_KEY")
		case ProviderDashScope:
			e.EmbeddingAPIKey = getenv("DASHSCOPE_API_KEY")
		}
	}
	if e.S3AccessKeyID == "" {
		e.S3AccessKeyID = getenv("AWS_ACCESS_KEY_ID")
		e.S3SecretAccessKey = getenv("AWS_SECRET_ACCESS_KEY")
	}
	if e.S3Region == "" {
		e.S3Region = getenv("AWS_REGION")
	}
}

// ApplyDefaults fills zero fields.
func (e *Engine) ApplyDefaults() {
	if e.PersistDir == "" {
		e.PersistDir = DefaultPersistDir
	}
	if e.Storage == "" {
		e.Storage = StorageLocal
	}
	if e.Index == "" {
		e.Index = "hnsw"
	}
	if e.EmbeddingProvider == "" {
		e.EmbeddingProvider = ProviderHashing
	}
	if e.LLMProvider == "" {
		e.LLMProvider = ProviderOpenAI
	}
	if e.Temperature == 0 {
		e.Temperature = DefaultTemperature
	}
	if e.TopK == 0 {
		e.TopK = DefaultTopK
	}
	if e.TimeoutSeconds == 0 {
		e.TimeoutSeconds = DefaultTimeout
	}
}

// Validate reports the first invalid setting.
func (e *Engine) Validate() error {
	switch e.Storage {
	case StorageLocal:
	case StorageS3:
		if e.S3Bucket == "" {
			return fmt.Errorf("engine: s3_bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("engine: unknown storage %q (want local or s3)", e.Storage)
	}
	switch e.Index {
	case "hnsw", "flat":
	default:
		return fmt.Errorf("engine: unknown index %q (want hnsw or flat)", e.Index)
	}
	switch e.EmbeddingProvider {
	case ProviderOpenAI, ProviderDashScope, ProviderHashing:
	default:
		return fmt.Errorf("engine: unknown embedding_provider %q", e.EmbeddingProvider)
	}
	switch e.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("engine: unknown llm_provider %q", e.LLMProvider)
	}
	if e.EmbeddingDim < 0 {
		return fmt.Errorf("engine: embedding_dim %d is negative", e.EmbeddingDim)
	}
	if e.TopK < 1 {
		return fmt.Errorf("engine: top_k %d must be at least 1", e.TopK)
	}
	if e.Temperature < 0 || e.Temperature > 2 {
		return fmt.Errorf("engine: temperature %v outside [0, 2]", e.Temperature)
	}
	if e.TimeoutSeconds < 0 {
		return fmt.Errorf("engine: timeout %d is negative", e.TimeoutSeconds)
	}
	return nil
}

// Timeout returns the per-request timeout.
func (e *Engine) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}
