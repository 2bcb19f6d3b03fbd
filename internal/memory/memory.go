// Package memory assembles the free-text user context the specialists see
// from what the store remembers about a user.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/counsel/internal/cache"
	"github.com/MikeSquared-Agency/counsel/internal/store"
)

const (
	// maxTopics bounds how many recent topics are mentioned.
	maxTopics = 3
	// maxStoredTopics bounds how many recent topics a profile keeps.
	maxStoredTopics = 20
)

// ProfileSource is satisfied by *store.Store.
type ProfileSource interface {
	GetUserProfile(ctx context.Context, userID string) (*store.UserProfile, error)
	UpsertUserProfile(ctx context.Context, p store.UserProfile) error
}

type Provider struct {
	profiles ProfileSource
	cache    cache.Store
	logger   *slog.Logger
}

func New(profiles ProfileSource, c cache.Store, logger *slog.Logger) *Provider {
	return &Provider{profiles: profiles, cache: c, logger: logger}
}

// UserContext returns the rendered context for userID, or "" when nothing
// is known. Rendered text is cached under user_context.
func (p *Provider) UserContext(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}
	if text, ok := p.cache.Get(ctx, cache.NamespaceUserContext, userID); ok {
		p.logger.Debug("user context cache hit", "user_id", userID)
		return text, nil
	}

	profile, err := p.profiles.GetUserProfile(ctx, userID)
	if errors.Is(err, store.ErrProfileNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load profile %s: %w", userID, err)
	}

	text := Render(profile)
	p.cache.Set(ctx, cache.NamespaceUserContext, userID, text, 0)
	return text, nil
}

// RecordInteraction folds the topics of a finished run into the user's
// profile, newest first, and drops the cached context so the next run sees
// them. A user without a profile gets one.
func (p *Provider) RecordInteraction(ctx context.Context, userID string, topics []string) error {
	if userID == "" || len(topics) == 0 {
		return nil
	}
	profile, err := p.profiles.GetUserProfile(ctx, userID)
	switch {
	case errors.Is(err, store.ErrProfileNotFound):
		profile = &store.UserProfile{UserID: userID}
	case err != nil:
		return fmt.Errorf("load profile %s: %w", userID, err)
	}

	profile.RecentTopics = mergeTopics(topics, profile.RecentTopics, maxStoredTopics)
	if err := p.profiles.UpsertUserProfile(ctx, *profile); err != nil {
		return fmt.Errorf("update profile %s: %w", userID, err)
	}
	p.cache.Delete(ctx, cache.NamespaceUserContext, userID)

	p.logger.Info("user memory updated", "user_id", userID, "topics", len(profile.RecentTopics))
	return nil
}

// mergeTopics puts fresh ahead of existing, drops repeats and keeps at
// most limit entries.
func mergeTopics(fresh, existing []string, limit int) []string {
	seen := make(map[string]bool, len(fresh)+len(existing))
	out := make([]string, 0, limit)
	for _, list := range [][]string{fresh, existing} {
		for _, t := range list {
			if t == "" || seen[t] || len(out) == limit {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Render turns a profile into a few plain sentences.
func Render(p *store.UserProfile) string {
	var parts []string

	switch {
	case p.Role != "" && p.Company != "":
		parts = append(parts, fmt.Sprintf("%s at %s.", p.Role, p.Company))
	case p.Role != "":
		parts = append(parts, p.Role+".")
	}
	if p.Industry != "" {
		parts = append(parts, fmt.Sprintf("Industry: %s.", p.Industry))
	}
	if len(p.Expertise) > 0 {
		parts = append(parts, fmt.Sprintf("Expertise: %s.", strings.Join(p.Expertise, ", ")))
	}
	if p.DecisionStyle != "" {
		parts = append(parts, fmt.Sprintf("Prefers %s decisions.", p.DecisionStyle))
	}
	if len(p.RecentTopics) > 0 {
		topics := p.RecentTopics
		if len(topics) > maxTopics {
			topics = topics[:maxTopics]
		}
		parts = append(parts, fmt.Sprintf("Recently discussed: %s.", strings.Join(topics, ", ")))
	}
	return strings.Join(parts, " ")
}
