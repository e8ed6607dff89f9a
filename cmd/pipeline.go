package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-research/internal/enrich"
	"github.com/sells-group/vendor-research/internal/research"
	"github.com/sells-group/vendor-research/internal/store"
	"github.com/sells-group/vendor-research/internal/website"
	anthropicpkg "github.com/sells-group/vendor-research/pkg/anthropic"
)

// env bundles the initialized pipeline components shared by commands.
type env struct {
	Store        store.Store
	Orchestrator *research.Orchestrator
	Queue        *research.Queue
}

func initResearch(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	extractor := website.NewExtractor(cfg.Scrape)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	enricher := enrich.New(anthropicClient, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)

	orchestrator := research.NewOrchestrator(st, extractor, enricher)
	return &env{
		Store:        st,
		Orchestrator: orchestrator,
		Queue:        research.NewQueue(orchestrator),
	}, nil
}

func (e *env) Close() {
	e.Queue.Wait()
	_ = e.Store.Close()
}
