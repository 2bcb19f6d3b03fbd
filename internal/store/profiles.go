package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrProfileNotFound is returned when a user has no stored profile.
var ErrProfileNotFound = errors.New("user profile not found")

// UserProfile is what the service remembers about a user.
type UserProfile struct {
	UserID        string   `json:"user_id"`
	Role          string   `json:"role"`
	Company       string   `json:"company"`
	Industry      string   `json:"industry"`
	Expertise     []string `json:"expertise"`
	DecisionStyle string   `json:"decision_style"`
	RecentTopics  []string `json:"recent_topics"`
}

func (s *Store) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	p := UserProfile{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT role, company, industry, expertise, decision_style, recent_topics
		FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.Role, &p.Company, &p.Industry, &p.Expertise, &p.DecisionStyle, &p.RecentTopics)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return &p, nil
}

func (s *Store) UpsertUserProfile(ctx context.Context, p UserProfile) error {
	if p.Expertise == nil {
		p.Expertise = []string{}
	}
	if p.RecentTopics == nil {
		p.RecentTopics = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, role, company, industry, expertise, decision_style, recent_topics, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (user_id) DO UPDATE SET
			role = EXCLUDED.role,
			company = EXCLUDED.company,
			industry = EXCLUDED.industry,
			expertise = EXCLUDED.expertise,
			decision_style = EXCLUDED.decision_style,
			recent_topics = EXCLUDED.recent_topics,
			updated_at = now()`,
		p.UserID, p.Role, p.Company, p.Industry, p.Expertise, p.DecisionStyle, p.RecentTopics,
	)
	if err != nil {
		return fmt.Errorf("upsert user profile: %w", err)
	}
	return nil
}
