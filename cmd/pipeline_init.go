package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nin-ia/leadcard/internal/agent"
	"github.com/nin-ia/leadcard/internal/ocr"
	"github.com/nin-ia/leadcard/internal/pipeline"
	"github.com/nin-ia/leadcard/internal/store"
	"github.com/nin-ia/leadcard/pkg/openai"
	"github.com/nin-ia/leadcard/pkg/tavily"
)

// pipelineEnv holds the initialized store, clients and pipeline needed by the
// capture/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leads.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, the OCR, assistants and search clients, and
// builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.OpenAI.Key == "" {
		return nil, eris.New("openai API key is required (LEADCARD_OPENAI_KEY)")
	}
	if cfg.Mistral.Key == "" {
		return nil, eris.New("mistral API key is required (LEADCARD_MISTRAL_KEY)")
	}
	if cfg.Tavily.Key == "" {
		return nil, eris.New("tavily API key is required (LEADCARD_TAVILY_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	defs, err := agent.LoadDefinitions(cfg.OpenAI.Model)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	assistants := openai.NewClient(cfg.OpenAI.Key,
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithRateLimit(cfg.OpenAI.RequestsPerSecond),
	)
	search := tavily.NewClient(cfg.Tavily.Key,
		tavily.WithBaseURL(cfg.Tavily.BaseURL),
		tavily.WithSearchDepth(cfg.Tavily.SearchDepth),
		tavily.WithMaxTokens(cfg.Tavily.MaxTokens),
	)
	extractor := ocr.NewMistralOCR(cfg.Mistral.Key, cfg.Mistral.OCRModel)

	runner := agent.NewRunner(assistants, agent.NewSearchInvoker(search),
		agent.WithPollInterval(time.Duration(cfg.Pipeline.PollIntervalSecs)*time.Second),
		agent.WithPollTimeout(time.Duration(cfg.Pipeline.PollTimeoutSecs)*time.Second),
	)

	p := pipeline.New(runner, defs, extractor, st)

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}
