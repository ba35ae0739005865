// Package config reads the service settings from the environment and builds
// the model clients they describe.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/projectcloudline/loss-assessment-service/internal/assessment"
	"github.com/projectcloudline/loss-assessment-service/internal/imageprep"
	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
)

// Config holds every environment-driven setting.
type Config struct {
	Backend  oracle.Backend
	Fallback oracle.Backend // empty disables the fallback oracle

	GeminiModel     string
	OpenRouterModel string
	OpenRouterLabel string
	AnthropicModel  string
	EmbeddingModel  string

	OracleTimeout    time.Duration
	OraclePause      time.Duration
	Concurrency      int
	RateLimitRetries int
	MinImages        int
	Mode             assessment.Mode

	PhotoBucket     string
	AnalyzeQueueURL string

	HeifConvertPath   string
	MaxImageDimension int

	OpenRouterReferer string
	OpenRouterTitle   string

	GeminiSecretARN     string
	OpenRouterSecretARN string
	AnthropicSecretARN  string
	DBSecretARN         string
}

// Load reads the configuration from the environment. Every malformed value
// is reported, not only the first.
func Load() (Config, error) {
	var errs []error
	p := parser{errs: &errs}

	c := Config{
		GeminiModel:     envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenRouterModel: envOrDefault("OPENROUTER_MODEL", "qwen/qwen3-vl-8b-instruct"),
		OpenRouterLabel: envOrDefault("OPENROUTER_LABEL", "Qwen"),
		AnthropicModel:  envOrDefault("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		EmbeddingModel:  envOrDefault("EMBEDDING_MODEL", "text-embedding-004"),

		OracleTimeout:    p.duration("ORACLE_TIMEOUT", 90*time.Second),
		OraclePause:      p.duration("ORACLE_PAUSE", time.Second),
		Concurrency:      p.integer("ANALYSIS_CONCURRENCY", 1),
		RateLimitRetries: p.integer("RATE_LIMIT_RETRIES", 2),
		MinImages:        p.integer("MIN_IMAGES", 1),

		PhotoBucket:     os.Getenv("PHOTO_BUCKET"),
		AnalyzeQueueURL: os.Getenv("ANALYZE_QUEUE_URL"),

		HeifConvertPath:   os.Getenv("HEIF_CONVERT_PATH"),
		MaxImageDimension: p.integer("MAX_IMAGE_DIMENSION", imageprep.DefaultOptions().MaxDimension),

		OpenRouterReferer: envOrDefault("OPENROUTER_REFERER", "https://loss-assessment.local"),
		OpenRouterTitle:   envOrDefault("OPENROUTER_TITLE", "Loss Assessment"),

		GeminiSecretARN:     os.Getenv("GEMINI_SECRET_ARN"),
		OpenRouterSecretARN: os.Getenv("OPENROUTER_SECRET_ARN"),
		AnthropicSecretARN:  os.Getenv("ANTHROPIC_SECRET_ARN"),
		DBSecretARN:         os.Getenv("DB_SECRET_ARN"),
	}

	backend, err := oracle.ParseBackend(os.Getenv("ORACLE_BACKEND"))
	if err != nil {
		errs = append(errs, fmt.Errorf("ORACLE_BACKEND: %w", err))
	}
	c.Backend = backend

	if name := strings.TrimSpace(os.Getenv("ORACLE_FALLBACK")); name != "" && !strings.EqualFold(name, "none") {
		fb, err := oracle.ParseBackend(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORACLE_FALLBACK: %w", err))
		} else if fb != backend {
			c.Fallback = fb
		}
	}

	switch mode := assessment.Mode(envOrDefault("ANALYSIS_MODE", string(assessment.ModePerImage))); mode {
	case assessment.ModePerImage, assessment.ModeCombined:
		c.Mode = mode
	default:
		errs = append(errs, fmt.Errorf("ANALYSIS_MODE: unknown mode %q", mode))
	}

	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("ANALYSIS_CONCURRENCY: must be at least 1"))
	}
	if c.RateLimitRetries < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RETRIES: must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}

// LoadDotEnv loads .env files for local runs. Missing files are ignored and
// variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Analyzer builds the batch analyzer for o.
func (c Config) Analyzer(o oracle.VisionOracle) *assessment.Analyzer {
	return &assessment.Analyzer{
		Oracle:           o,
		Mode:             c.Mode,
		MinImages:        c.MinImages,
		Pause:            c.OraclePause,
		Concurrency:      c.Concurrency,
		RateLimitRetries: c.RateLimitRetries,
	}
}

// ImageOptions returns the photo preparation settings.
func (c Config) ImageOptions() imageprep.Options {
	opts := imageprep.DefaultOptions()
	opts.MaxDimension = c.MaxImageDimension
	opts.HeifConvertPath = c.HeifConvertPath
	return opts
}

// Models returns the model identifiers per backend.
func (c Config) Models() oracle.Models {
	return oracle.Models{
		Gemini:          c.GeminiModel,
		OpenRouter:      c.OpenRouterModel,
		OpenRouterLabel: c.OpenRouterLabel,
		Anthropic:       c.AnthropicModel,
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type parser struct {
	errs *[]error
}

func (p parser) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

// duration accepts Go durations ("90s") and bare seconds ("90").
func (p parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
