package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/nicosuave/memex/internal/async"
	"github.com/nicosuave/memex/internal/embed"
	"github.com/nicosuave/memex/internal/ingest"
	"github.com/nicosuave/memex/internal/memexconfig"
	"github.com/nicosuave/memex/internal/merrors"
	"github.com/nicosuave/memex/internal/search"
	"github.com/nicosuave/memex/internal/session"
	"github.com/nicosuave/memex/internal/store"
)

// app wires together every package named in SPEC_FULL.md into one
// runnable dependency graph, shared by the root (TUI) and index
// commands so the two entry points never drift out of sync.
type app struct {
	Paths   memexconfig.Paths
	Config  memexconfig.UserConfig
	FT      *store.FullTextIndex
	VS      *store.VectorStore
	Embed   embed.Embedder
	Orch    *ingest.Orchestrator
	Engine  *search.Engine
	Agg     *session.Aggregator
	Ctrl    *async.Controller
	Options ingest.Options
}

// buildApp resolves paths, loads config.toml, opens both stores, and
// constructs an embedder per the model-tag priority chain
// (explicit > MEMEX_MODEL > config.toml > DefaultTag). offline forces
// the static backend regardless of the resolved tag, matching
// spec.md's "works offline" guarantee.
func buildApp(ctx context.Context, rootOverride, modelFlag string, offline bool) (*app, error) {
	paths, err := memexconfig.NewPaths(rootOverride)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}

	cfg, err := memexconfig.Load(paths)
	if err != nil {
		return nil, err
	}

	ft, err := store.OpenFullText(paths.Index)
	if err != nil {
		return nil, err
	}
	vs, err := store.OpenVectorStore(paths.Vectors)
	if err != nil {
		ft.Close()
		return nil, err
	}

	var embedder embed.Embedder
	if cfg.EmbeddingsEnabled() {
		tag := embed.ResolveTag(modelFlag, cfg.ModelTag())
		if offline {
			tag = embed.TagPotion
		}
		embedder, err = embed.New(ctx, embed.Config{Tag: tag})
		if err != nil {
			if merrors.IsKind(err, merrors.BackendUnavailable) {
				embedder = nil
			} else {
				vs.Close()
				ft.Close()
				return nil, err
			}
		}
	}

	orch := ingest.New(paths.State, ft, vs, embedder)
	engine := search.NewEngine(ft, vs, embedder)
	agg := session.NewAggregator(ft)
	ctrl := async.NewController(orch, engine, agg, paths.Index)

	home, _ := os.UserHomeDir()
	opts := ingest.Options{
		ClaudeRoot:         filepath.Join(home, ".claude", "projects"),
		CodexSessionRoot:   filepath.Join(home, ".codex", "sessions"),
		CodexHistoryPath:   filepath.Join(home, ".codex", "history.jsonl"),
		IncludeClaude:      true,
		IncludeCodex:       true,
		Embeddings:         embedder != nil,
		BackfillEmbeddings: true,
		ModelTag:           string(embed.ResolveTag(modelFlag, cfg.ModelTag())),
		ScanCacheTTL:       time.Duration(cfg.ScanCacheTTLSeconds()) * time.Second,
	}

	return &app{
		Paths: paths, Config: cfg, FT: ft, VS: vs, Embed: embedder,
		Orch: orch, Engine: engine, Agg: agg, Ctrl: ctrl, Options: opts,
	}, nil
}

func (a *app) Close() {
	if a.Embed != nil {
		_ = a.Embed.Close()
	}
	_ = a.VS.Close()
	_ = a.FT.Close()
}
