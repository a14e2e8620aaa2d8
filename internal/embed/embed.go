// Package embed generates vector embeddings for indexed text, behind a
// small Embedder interface with three interchangeable backends (static
// hash-based, Ollama HTTP, and an LRU cache wrapping either) and a tag
// selection chain that resolves one of the five closed model tags
// named by SPEC_FULL.md §4.3 to a concrete backend.
package embed

import (
	"context"
	"os"
	"runtime"
	"strconv"
)

// Tag is one of the closed set of model identifiers memex understands.
type Tag string

const (
	TagMiniLM   Tag = "minilm"
	TagBGESmall Tag = "bgesmall"
	TagNomic    Tag = "nomic"
	TagGemma    Tag = "gemma"
	TagPotion   Tag = "potion"

	DefaultTag = TagPotion
)

func (t Tag) Valid() bool {
	switch t {
	case TagMiniLM, TagBGESmall, TagNomic, TagGemma, TagPotion:
		return true
	default:
		return false
	}
}

// Dims returns the declared embedding width for tag, used to size the
// static embedder and to validate against the vector store's dims.
func (t Tag) Dims() int {
	switch t {
	case TagMiniLM, TagBGESmall:
		return 384
	default:
		return 768
	}
}

// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// ResolveTag picks the model tag per SPEC_FULL.md §4.3's priority
// chain: explicit argument, then MEMEX_MODEL, then the config file's
// model field, then DefaultTag.
func ResolveTag(explicit, configModel string) Tag {
	if explicit != "" {
		return Tag(explicit)
	}
	if env := os.Getenv("MEMEX_MODEL"); env != "" {
		return Tag(env)
	}
	if configModel != "" {
		return Tag(configModel)
	}
	return DefaultTag
}

// init pins the thread pool size used by CPU-bound embedding backends,
// mirroring original_source/src/embed.rs's available_parallelism call.
func init() {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	if os.Getenv("OMP_NUM_THREADS") == "" {
		_ = os.Setenv("OMP_NUM_THREADS", strconv.Itoa(n))
	}
	if os.Getenv("ORT_NUM_THREADS") == "" {
		_ = os.Setenv("ORT_NUM_THREADS", strconv.Itoa(n))
	}
}
