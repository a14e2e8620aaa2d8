package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nicosuave/memex/internal/merrors"
)

const (
	defaultOllamaHost    = "http://localhost:11434"
	defaultOllamaTimeout = 60 * time.Second
)

// ollamaEmbedRequest mirrors the teacher's internal/embed/ollama_types.go
// request shape for Ollama's /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaEmbedder generates embeddings via Ollama's HTTP API, grounded
// on the teacher's internal/embed/ollama.go transport but stripped of
// the teacher's thermal-aware progressive timeout logic: memex embeds
// short conversation turns one request at a time, not multi-thousand
// chunk codebases, so there is no batch-position-dependent thermal
// curve to compensate for.
type OllamaEmbedder struct {
	client *http.Client
	host   string
	model  string
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder dials host (defaulting to localhost:11434) and
// confirms modelName is available with a throwaway embed call, which
// also auto-detects its dimensionality when dims is 0. A failed probe
// returns a BackendUnavailable error.
func NewOllamaEmbedder(ctx context.Context, host, modelName string, dims int) (*OllamaEmbedder, error) {
	if host == "" {
		host = defaultOllamaHost
	}
	e := &OllamaEmbedder{
		client: &http.Client{Timeout: defaultOllamaTimeout},
		host:   host,
		model:  modelName,
		dims:   dims,
	}

	vec, err := e.embedOne(ctx, "memex dimension probe")
	if err != nil {
		return nil, merrors.New(merrors.BackendUnavailable, "ollama embedder unreachable", err)
	}
	if e.dims == 0 {
		e.dims = len(vec)
	}
	return e, nil
}

func (e *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OllamaEmbedder) embedMany(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, merrors.Wrap(merrors.Io, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, merrors.Wrap(merrors.Io, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, merrors.New(merrors.BackendUnavailable, "ollama request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, merrors.New(merrors.BackendUnavailable, fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, string(b)), nil)
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, merrors.Wrap(merrors.ParseError, err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, merrors.New(merrors.ParseError, "ollama returned mismatched embedding count", nil)
	}

	out := make([][]float32, len(parsed.Embeddings))
	for i, emb := range parsed.Embeddings {
		v := make([]float32, len(emb))
		for j, x := range emb {
			v[j] = float32(x)
		}
		out[i] = v
	}
	return out, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, merrors.New(merrors.BackendUnavailable, "ollama embedder is closed", nil)
	}
	return e.embedOne(ctx, text)
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, merrors.New(merrors.BackendUnavailable, "ollama embedder is closed", nil)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return e.embedMany(ctx, texts)
}

func (e *OllamaEmbedder) Dimensions() int  { return e.dims }
func (e *OllamaEmbedder) ModelName() string { return e.model }

func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
