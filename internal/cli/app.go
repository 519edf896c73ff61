package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/cache"
	"github.com/ppiankov/provenance-radar/internal/embed"
	"github.com/ppiankov/provenance-radar/internal/geocode"
	"github.com/ppiankov/provenance-radar/internal/llm"
	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/pipeline"
	"github.com/ppiankov/provenance-radar/internal/store"
	"github.com/ppiankov/provenance-radar/internal/validate"
)

// app holds the long-lived collaborators built once per process
type app struct {
	store    *store.SQLiteStore
	pipeline *pipeline.Pipeline
}

func (a *app) Close() error {
	return a.store.Close()
}

// buildApp opens the store and wires every collaborator into a pipeline.
// Optional services that fail to configure are disabled with a warning.
func buildApp(cfg *model.Config, logger *zap.Logger) (*app, error) {
	s, err := store.Open(cfg.Store, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	deps := pipeline.Deps{
		Store:          s,
		Citations:      validate.NewCitationClassifier(&cfg.Authority),
		Logger:         logger.Named("pipeline"),
		GeocodeWorkers: cfg.Geocode.Workers,
		EmbedWorkers:   cfg.Embed.Workers,
	}

	if cfg.Embed.Model != "" {
		e, err := embed.New(cfg.Embed, cfg.Proxy)
		if err != nil {
			logger.Warn("embeddings disabled", zap.Error(err))
		} else {
			deps.Embedder = e
		}
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.Proxy))
	if err != nil {
		logger.Warn("text generation disabled", zap.Error(err))
		provider = nil
	}
	deps.Explainer = llm.NewExplainer(provider, cfg.LLM.Model, logger.Named("llm"))

	deps.Geocoder = geocode.New(cfg.Geocode, cfg.Proxy, cache.FromConfig(cfg.Cache), s, logger.Named("geocode"))

	p, err := pipeline.New(deps)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return &app{store: s, pipeline: p}, nil
}
