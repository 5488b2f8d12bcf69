package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/skill-mapper/internal/ai"
	"github.com/spigell/skill-mapper/internal/ai/gemini"
	"github.com/spigell/skill-mapper/internal/ai/openai"
	"github.com/spigell/skill-mapper/internal/conversation"
	"github.com/spigell/skill-mapper/internal/framework"
	"github.com/spigell/skill-mapper/internal/interview"
	"github.com/spigell/skill-mapper/internal/metrics"
	"github.com/spigell/skill-mapper/internal/secrets"
	"github.com/spigell/skill-mapper/internal/skills"
	"github.com/spigell/skill-mapper/internal/taxonomy"
	"github.com/spigell/skill-mapper/internal/taxonomy/cache"
	"github.com/spigell/skill-mapper/internal/taxonomy/esco"

	"go.uber.org/zap"
)

const (
	providerGemini = "gemini"
	providerOpenAI = "openai"
	providerESCO   = "esco"
	providerNone   = "none"
)

func newModel(ctx context.Context, cfg *AIConfig, collector *metrics.Collector, logger *zap.Logger) (ai.Model, error) {
	if cfg == nil {
		return nil, errors.New("ai configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider == "" {
		provider = providerGemini
	}

	modelLogger := logger.With(
		zap.String("provider", provider),
		zap.String("model", cfg.Model),
		zap.Int("ai_retry_attempts", cfg.MaxRetries),
	)

	var (
		model ai.Model
		err   error
	)
	switch provider {
	case providerGemini:
		key, kerr := loadAPIKey(cfg, "gemini api key", "GEMINI_API_KEY")
		if kerr != nil {
			return nil, kerr
		}
		model, err = gemini.NewGenerator(ctx, key, cfg.Model, cfg.MaxRetries, cfg.MaxLogLength, modelLogger)
	case providerOpenAI:
		key, kerr := loadAPIKey(cfg, "openai api key", "OPENAI_API_KEY")
		if kerr != nil {
			return nil, kerr
		}
		model, err = openai.New(key, cfg.Model, cfg.MaxRetries, cfg.MaxLogLength, modelLogger)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return ai.Observe(model, collector.ObserveModel), nil
}

func loadAPIKey(cfg *AIConfig, name, env string) (string, error) {
	key, err := secrets.Load(secrets.Source{
		Name:  name,
		File:  cfg.APIKeyFile,
		Env:   env,
		Value: cfg.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("%w (set ai.api-key-file, ai.api-key or %s)", err, env)
	}
	return key, nil
}

func loadFrameworks(cfg *FrameworkConfig) (framework.Registry, error) {
	registry, err := framework.Builtin()
	if err != nil {
		return nil, fmt.Errorf("loading builtin frameworks: %w", err)
	}
	if cfg != nil && strings.TrimSpace(cfg.File) != "" {
		f, err := framework.LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		registry[f.Name()] = f
	}
	return registry, nil
}

// newResolver returns the taxonomy backed resolver when a taxonomy provider
// is configured and the offline framework resolver otherwise. The returned
// closer releases the cache connection, if any.
func newResolver(config *Config, model ai.Model, registry framework.Registry, collector *metrics.Collector, logger *zap.Logger) (interview.ClaimResolver, func() error, error) {
	noop := func() error { return nil }

	tax := config.Taxonomy
	provider := providerNone
	if tax != nil && tax.Provider != "" {
		provider = strings.ToLower(strings.TrimSpace(tax.Provider))
	}

	switch provider {
	case providerNone:
		fw := config.Framework
		if fw == nil {
			fw = &FrameworkConfig{Name: "ESCO"}
		}
		if _, err := registry.Get(fw.Name); err != nil {
			return nil, noop, err
		}
		service := framework.NewMappingService(registry, logger)
		logger.Info("resolving skills offline", zap.String("framework", fw.Name), zap.Float64("threshold", fw.Threshold))
		return framework.NewResolver(service, fw.Name, fw.Threshold), noop, nil
	case providerESCO:
	default:
		return nil, noop, fmt.Errorf("unsupported taxonomy provider: %s", tax.Provider)
	}

	client := esco.New(logger, tax.RateLimit, tax.Burst)
	if tax.URL != "" {
		client.APIURL = strings.TrimRight(tax.URL, "/")
	}
	if tax.UserAgent != "" {
		client.UserAgent = tax.UserAgent
	}
	if tax.Language != "" {
		client.Language = tax.Language
	}

	var search taxonomy.Client = client
	closer := noop
	if tax.Cache != nil && tax.Cache.Redis != nil && tax.Cache.Redis.Addr != "" {
		cached, err := cache.New(client, *tax.Cache.Redis, collector.CacheObserver, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("taxonomy cache: %w", err)
		}
		search = cached
		closer = cached.Close
	}
	search = taxonomy.Observe(search, collector.ObserveTaxonomy)

	opts := []skills.ResolverOption{
		skills.WithLanguage(tax.Language),
		skills.WithTopK(tax.TopK),
		skills.WithSearchTimeout(tax.Timeout),
	}
	if config.AI != nil {
		opts = append(opts,
			skills.WithModelTimeout(config.AI.Timeout),
			skills.WithMaxLogLength(config.AI.MaxLogLength),
		)
	}

	logger.Info("resolving skills against taxonomy",
		zap.String("taxonomy", search.Name()),
		zap.String("language", tax.Language),
		zap.Int("top_k", tax.TopK),
	)
	return skills.NewResolver(search, model, logger, opts...), closer, nil
}

func minTurns(cfg *InterviewConfig) (map[conversation.State]int, error) {
	if cfg == nil || len(cfg.MinTurns) == 0 {
		return nil, nil
	}
	out := make(map[conversation.State]int, len(cfg.MinTurns))
	for key, n := range cfg.MinTurns {
		st, err := conversation.ParseState(strings.ReplaceAll(key, "-", "_"))
		if err != nil {
			return nil, fmt.Errorf("interview.min-turns: %w", err)
		}
		out[st] = n
	}
	return out, nil
}
