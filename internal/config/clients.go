package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/projectcloudline/loss-assessment-service/internal/anthropic"
	"github.com/projectcloudline/loss-assessment-service/internal/awsutil"
	"github.com/projectcloudline/loss-assessment-service/internal/db"
	"github.com/projectcloudline/loss-assessment-service/internal/gemini"
	"github.com/projectcloudline/loss-assessment-service/internal/openrouter"
	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
)

// API key variables; the same names are used as fields of JSON secrets.
const (
	GeminiKeyVar     = "GEMINI_API_KEY"
	OpenRouterKeyVar = "OPENROUTER_API_KEY"
	AnthropicKeyVar  = "ANTHROPIC_API_KEY"
)

// Clients lazily creates the model clients. A key set in the environment
// wins over the backend's secret. Clients is safe for concurrent use.
type Clients struct {
	Config  Config
	Secrets awsutil.SecretsProvider // nil for local runs

	mu         sync.Mutex
	gemini     gemini.Client
	openRouter openrouter.Client
	anthropic  anthropic.Client
}

// NewClients returns a client factory for cfg.
func NewClients(cfg Config, secrets awsutil.SecretsProvider) *Clients {
	return &Clients{Config: cfg, Secrets: secrets}
}

// APIKey resolves the key stored under name, from the environment first and
// then from the secret at arn.
func (c *Clients) APIKey(ctx context.Context, name, arn string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	if c.Secrets == nil || arn == "" {
		return "", fmt.Errorf("%s is not set and no secret is configured", name)
	}
	key, err := awsutil.SecretField(ctx, c.Secrets, arn, name)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	return key, nil
}

// Gemini returns the Gemini client, creating it on first use.
func (c *Clients) Gemini(ctx context.Context) (gemini.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gemini != nil {
		return c.gemini, nil
	}
	key, err := c.APIKey(ctx, GeminiKeyVar, c.Config.GeminiSecretARN)
	if err != nil {
		return nil, err
	}
	client, err := gemini.New(ctx, key, c.Config.OracleTimeout)
	if err != nil {
		return nil, err
	}
	c.gemini = client
	return client, nil
}

// OpenRouter returns the OpenRouter client, creating it on first use.
func (c *Clients) OpenRouter(ctx context.Context) (openrouter.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openRouter != nil {
		return c.openRouter, nil
	}
	key, err := c.APIKey(ctx, OpenRouterKeyVar, c.Config.OpenRouterSecretARN)
	if err != nil {
		return nil, err
	}
	c.openRouter = openrouter.New(key, openrouter.Options{
		Referer: c.Config.OpenRouterReferer,
		Title:   c.Config.OpenRouterTitle,
		Timeout: c.Config.OracleTimeout,
	})
	return c.openRouter, nil
}

// Anthropic returns the Claude client, creating it on first use.
func (c *Clients) Anthropic(ctx context.Context) (anthropic.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.anthropic != nil {
		return c.anthropic, nil
	}
	key, err := c.APIKey(ctx, AnthropicKeyVar, c.Config.AnthropicSecretARN)
	if err != nil {
		return nil, err
	}
	c.anthropic = anthropic.New(key, c.Config.OracleTimeout)
	return c.anthropic, nil
}

// Oracle builds the configured oracle, wrapped in a Fallback when a fallback
// backend is configured.
func (c *Clients) Oracle(ctx context.Context) (oracle.VisionOracle, error) {
	primary, err := c.oracleFor(ctx, c.Config.Backend)
	if err != nil {
		return nil, fmt.Errorf("build %s oracle: %w", c.Config.Backend, err)
	}
	if c.Config.Fallback == "" {
		return primary, nil
	}
	secondary, err := c.oracleFor(ctx, c.Config.Fallback)
	if err != nil {
		return nil, fmt.Errorf("build %s fallback oracle: %w", c.Config.Fallback, err)
	}
	return &oracle.Fallback{Primary: primary, Secondary: secondary}, nil
}

func (c *Clients) oracleFor(ctx context.Context, b oracle.Backend) (oracle.VisionOracle, error) {
	var clients oracle.Clients
	var err error
	switch b {
	case oracle.BackendGemini:
		clients.Gemini, err = c.Gemini(ctx)
	case oracle.BackendOpenRouter:
		clients.OpenRouter, err = c.OpenRouter(ctx)
	case oracle.BackendAnthropic:
		clients.Anthropic, err = c.Anthropic(ctx)
	}
	if err != nil {
		return nil, err
	}
	return oracle.New(b, clients, c.Config.Models())
}

// Embedder embeds report summaries with the Gemini embedding model.
type Embedder struct {
	Clients *Clients
}

// Embed returns the embedding of text.
func (e Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := e.Clients.Gemini(ctx)
	if err != nil {
		return nil, err
	}
	return client.EmbedContent(ctx, e.Clients.Config.EmbeddingModel, text)
}

// DBCredentials reads database settings from DB_HOST and friends when set,
// else from the JSON secret at DB_SECRET_ARN.
func DBCredentials(cfg Config, secrets awsutil.SecretsProvider) db.CredentialsFunc {
	return func(ctx context.Context) (db.Credentials, error) {
		if host := os.Getenv("DB_HOST"); host != "" {
			return db.Credentials{
				Host:     host,
				Port:     envOrDefault("DB_PORT", "5432"),
				DBName:   envOrDefault("DB_NAME", "postgres"),
				Username: envOrDefault("DB_USER", "postgres"),
				Password: envOrDefault("DB_PASSWORD", "postgres"),
			}, nil
		}
		if secrets == nil || cfg.DBSecretARN == "" {
			return db.Credentials{}, fmt.Errorf("neither DB_HOST nor DB_SECRET_ARN is set")
		}
		raw, err := secrets.GetSecret(ctx, cfg.DBSecretARN)
		if err != nil {
			return db.Credentials{}, fmt.Errorf("get db secret: %w", err)
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return db.Credentials{}, fmt.Errorf("parse db secret: %w", err)
		}
		str := func(keys ...string) string {
			for _, k := range keys {
				if v, ok := fields[k]; ok && v != nil {
					return fmt.Sprint(v)
				}
			}
			return ""
		}
		creds := db.Credentials{
			Host:     str("host"),
			Port:     str("port"),
			DBName:   str("dbname", "database"),
			Username: str("username"),
			Password: str("password"),
		}
		return creds, nil
	}
}
