// Package prompts resolves agent system prompts. A file named <name>.txt in
// the prompts directory overrides the built-in text.
package prompts

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/counsel/internal/cache"
)

type Loader struct {
	dir    string
	cache  cache.Store
	logger *slog.Logger
}

// NewLoader builds a loader. dir may be empty; store may be nil.
func NewLoader(dir string, store cache.Store, logger *slog.Logger) *Loader {
	return &Loader{dir: dir, cache: store, logger: logger}
}

// Get returns the prompt text for name, or an empty string when no
// override and no default exist.
func (l *Loader) Get(ctx context.Context, name string) string {
	id := l.dir + ":" + name
	if l.cache != nil {
		if text, ok := l.cache.Get(ctx, cache.NamespaceSystemPrompt, id); ok {
			return text
		}
	}

	text, err := l.readOverride(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("failed to read prompt override", "name", name, "error", err)
		}
		text = defaults[name]
	}

	if text != "" && l.cache != nil {
		l.cache.Set(ctx, cache.NamespaceSystemPrompt, id, text, 0)
	}
	return text
}

func (l *Loader) readOverride(name string) (string, error) {
	if l.dir == "" {
		return "", fs.ErrNotExist
	}
	data, err := os.ReadFile(filepath.Join(l.dir, name+".txt"))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fs.ErrNotExist
	}
	l.logger.Info("loaded prompt override", "name", name, "dir", l.dir)
	return text, nil
}
