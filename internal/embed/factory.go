package embed

import (
	"context"
	"log/slog"

	"github.com/nicosuave/memex/internal/merrors"
)

// Config configures embedder construction. Host is the Ollama base
// URL (only consulted for Nomic/Gemma tags, or when MiniLM/BGESmall
// fall back from Ollama to static). CacheSize of 0 selects
// DefaultCacheSize.
type Config struct {
	Tag       Tag
	Host      string
	CacheSize int
}

// New resolves cfg.Tag to a concrete backend and wraps it with an LRU
// cache, per SPEC_FULL.md §4.3's backend table:
//
//   - Potion always uses the static backend (its original role as a
//     tiny static-lookup model maps directly onto the teacher's
//     dependency-free embedder).
//   - Nomic and Gemma always use the Ollama backend.
//   - MiniLM and BGESmall try Ollama first and fall back to static at
//     384 dims if Ollama is unreachable, matching the teacher's
//     newOllamaWithFallback-then-static structure. The fallback is
//     logged with slog.Warn in newWithOllamaFallback, not swallowed
//     silently.
//
// New returns a BackendUnavailable error only when a tag that has no
// static fallback (Nomic, Gemma) cannot reach Ollama.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	if !cfg.Tag.Valid() {
		return nil, merrors.New(merrors.ConfigInvalid, "unknown embedding model tag: "+string(cfg.Tag), nil)
	}

	var inner Embedder
	var err error

	switch cfg.Tag {
	case TagPotion:
		inner = NewStaticEmbedder(cfg.Tag.Dims(), string(TagPotion))
	case TagNomic:
		inner, err = NewOllamaEmbedder(ctx, cfg.Host, "nomic-embed-text", cfg.Tag.Dims())
		if err != nil {
			return nil, err
		}
	case TagGemma:
		inner, err = NewOllamaEmbedder(ctx, cfg.Host, "embeddinggemma", cfg.Tag.Dims())
		if err != nil {
			return nil, err
		}
	case TagMiniLM:
		inner = newWithOllamaFallback(ctx, cfg.Host, "all-minilm", cfg.Tag)
	case TagBGESmall:
		inner = newWithOllamaFallback(ctx, cfg.Host, "bge-small", cfg.Tag)
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func newWithOllamaFallback(ctx context.Context, host, ollamaModel string, tag Tag) Embedder {
	e, err := NewOllamaEmbedder(ctx, host, ollamaModel, tag.Dims())
	if err == nil {
		return e
	}
	slog.Warn("ollama embedder unavailable, falling back to static embedder",
		slog.String("model", string(tag)), slog.String("error", err.Error()))
	return NewStaticEmbedder(tag.Dims(), string(tag))
}
