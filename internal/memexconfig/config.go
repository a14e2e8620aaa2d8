// Package memexconfig resolves memex's root directory layout and loads
// config.toml, following original_source/src/config.rs's Paths and
// UserConfig shapes (union of its two divergent variants) decoded with
// github.com/BurntSushi/toml rather than the teacher's YAML loader,
// because the external contract (see SPEC_FULL.md §6) pins config.toml
// as the file format.
package memexconfig

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/nicosuave/memex/internal/merrors"
)

// Paths resolves the on-disk layout under a memex root.
type Paths struct {
	Root    string
	Index   string
	Vectors string
	State   string
}

// NewPaths resolves the root directory: rootOverride if non-empty,
// otherwise $HOME/.memex.
func NewPaths(rootOverride string) (Paths, error) {
	root := rootOverride
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, merrors.New(merrors.Io, "resolve home directory", err)
		}
		root = filepath.Join(home, ".memex")
	}

	return Paths{
		Root:    root,
		Index:   filepath.Join(root, "index"),
		Vectors: filepath.Join(root, "vectors"),
		State:   filepath.Join(root, "state"),
	}, nil
}

// EnsureDirs creates every directory in the layout, idempotently.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Index, p.Vectors, p.State} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return merrors.New(merrors.Io, "create memex directory "+dir, err)
		}
	}
	return nil
}

// ConfigPath is root/config.toml.
func (p Paths) ConfigPath() string {
	return filepath.Join(p.Root, "config.toml")
}

// UserConfig is the union of every field named in config.toml (all
// optional; see SPEC_FULL.md §6). Fields are pointers so that "unset"
// is distinguishable from the Go zero value, mirroring Rust's
// Option<T> fields in config.rs.
type UserConfig struct {
	Embeddings        *bool   `toml:"embeddings"`
	AutoIndexOnSearch *bool   `toml:"auto_index_on_search"`
	Model             *string `toml:"model"`
	ScanCacheTTL      *uint64 `toml:"scan_cache_ttl"`
	FusionAlpha       *float64 `toml:"fusion_alpha"`

	IndexServiceWatch         *bool   `toml:"index_service_watch"`
	IndexServiceInterval      *uint64 `toml:"index_service_interval"`
	IndexServiceWatchInterval *uint64 `toml:"index_service_watch_interval"`
	IndexServiceLabel         *string `toml:"index_service_label"`
	IndexServiceStdout        *string `toml:"index_service_stdout"`
	IndexServiceStderr        *string `toml:"index_service_stderr"`
	IndexServicePlist         *string `toml:"index_service_plist"`

	ClaudeResumeCmd *string `toml:"claude_resume_cmd"`
	CodexResumeCmd  *string `toml:"codex_resume_cmd"`
}

// Load reads config.toml from paths.Root. A missing file yields a
// zero-value UserConfig (all defaults), not an error. A malformed file
// is a fatal ConfigInvalid error per the error-handling design.
func Load(paths Paths) (UserConfig, error) {
	path := paths.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return UserConfig{}, nil
		}
		return UserConfig{}, merrors.New(merrors.Io, "read config.toml", err)
	}

	var cfg UserConfig
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return UserConfig{}, merrors.New(merrors.ConfigInvalid, "parse config.toml", err)
	}
	return cfg, nil
}

// EmbeddingsEnabled defaults to true.
func (c UserConfig) EmbeddingsEnabled() bool {
	if c.Embeddings == nil {
		return true
	}
	return *c.Embeddings
}

// AutoIndexOnSearchEnabled defaults to true.
func (c UserConfig) AutoIndexOnSearchEnabled() bool {
	if c.AutoIndexOnSearch == nil {
		return true
	}
	return *c.AutoIndexOnSearch
}

// ModelTag returns the configured model tag, or "" if unset (the
// caller applies the MEMEX_MODEL env var and the Potion default ahead
// of this, per the embedder's selection priority).
func (c UserConfig) ModelTag() string {
	if c.Model == nil {
		return ""
	}
	return *c.Model
}

// ScanCacheTTLSeconds defaults to 3600 (1 hour).
func (c UserConfig) ScanCacheTTLSeconds() uint64 {
	if c.ScanCacheTTL == nil {
		return 3600
	}
	return *c.ScanCacheTTL
}

// FusionAlphaOrDefault returns the configured fusion weight, or 0.5
// when unset or out of the valid [0,1] range.
func (c UserConfig) FusionAlphaOrDefault() float64 {
	if c.FusionAlpha == nil {
		return 0.5
	}
	a := *c.FusionAlpha
	if a < 0 || a > 1 {
		return 0.5
	}
	return a
}

// IndexServiceWatchEnabled defaults to false.
func (c UserConfig) IndexServiceWatchEnabled() bool {
	if c.IndexServiceWatch == nil {
		return false
	}
	return *c.IndexServiceWatch
}

// IndexServiceIntervalSeconds defaults to 3600.
func (c UserConfig) IndexServiceIntervalSeconds() uint64 {
	if c.IndexServiceInterval == nil {
		return 3600
	}
	return *c.IndexServiceInterval
}

// IndexServiceWatchIntervalSeconds defaults to 30.
func (c UserConfig) IndexServiceWatchIntervalSeconds() uint64 {
	if c.IndexServiceWatchInterval == nil {
		return 30
	}
	return *c.IndexServiceWatchInterval
}

// ResumeCmd returns the configured resume-command template for source,
// or the built-in default template if unset.
func (c UserConfig) ResumeCmd(isClaude bool) string {
	if isClaude {
		if c.ClaudeResumeCmd != nil {
			return *c.ClaudeResumeCmd
		}
		return "claude --resume {session_id}"
	}
	if c.CodexResumeCmd != nil {
		return *c.CodexResumeCmd
	}
	return "codex resume {session_id}"
}
