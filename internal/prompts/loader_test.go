package prompts

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/counsel/internal/cache"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGet_Defaults(t *testing.T) {
	l := NewLoader("", nil, discardLogger())
	ctx := context.Background()

	for _, name := range []string{MarketCompass, FinancialGuardian, StrategyAnalyst, ChiefOfStaff} {
		if l.Get(ctx, name) == "" {
			t.Errorf("missing default for %s", name)
		}
		if l.Get(ctx, Condensed(name)) == "" {
			t.Errorf("missing condensed default for %s", name)
		}
	}
	if got := l.Get(ctx, "nonexistent"); got != "" {
		t.Errorf("expected empty prompt, got %q", got)
	}
}

func TestGet_FileOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "market_compass.txt"), []byte("  custom market prompt\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(dir, nil, discardLogger())
	if got := l.Get(context.Background(), MarketCompass); got != "custom market prompt" {
		t.Errorf("expected override, got %q", got)
	}
	if got := l.Get(context.Background(), StrategyAnalyst); !strings.Contains(got, "STRATEGY ANALYST") {
		t.Errorf("expected default for missing file, got %q", got)
	}
}

func TestGet_EmptyFileUsesDefault(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chief_of_staff.txt"), []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := NewLoader(dir, nil, discardLogger()).Get(context.Background(), ChiefOfStaff)
	if !strings.Contains(got, "CHIEF OF STAFF") {
		t.Errorf("expected default, got %q", got)
	}
}

func TestGet_CachesLoadedText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "market_compass.txt")
	if err := os.WriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := cache.NewMemory(discardLogger())
	l := NewLoader(dir, store, discardLogger())
	ctx := context.Background()

	if got := l.Get(ctx, MarketCompass); got != "first" {
		t.Fatalf("expected first, got %q", got)
	}
	if err := os.WriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := l.Get(ctx, MarketCompass); got != "first" {
		t.Errorf("expected cached text, got %q", got)
	}
}
