package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/counsel/internal/cache"
	"github.com/MikeSquared-Agency/counsel/internal/store"
)

type fakeProfiles struct {
	profiles  map[string]*store.UserProfile
	err       error
	upsertErr error
	calls     int
	upserts   []store.UserProfile
}

func (f *fakeProfiles) GetUserProfile(_ context.Context, userID string) (*store.UserProfile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfiles) UpsertUserProfile(_ context.Context, p store.UserProfile) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, p)
	if f.profiles == nil {
		f.profiles = make(map[string]*store.UserProfile)
	}
	f.profiles[p.UserID] = &p
	return nil
}

func newProvider(f *fakeProfiles) *Provider {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(f, cache.NewMemory(logger), logger)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		profile store.UserProfile
		want    string
	}{
		{
			name: "full profile",
			profile: store.UserProfile{
				Role: "CEO", Company: "Acme", Industry: "B2B SaaS",
				Expertise:     []string{"sales", "pricing"},
				DecisionStyle: "data-driven",
				RecentTopics:  []string{"hiring", "fundraising", "pricing", "churn"},
			},
			want: "CEO at Acme. Industry: B2B SaaS. Expertise: sales, pricing. Prefers data-driven decisions. Recently discussed: hiring, fundraising, pricing.",
		},
		{
			name:    "role only",
			profile: store.UserProfile{Role: "VP Product"},
			want:    "VP Product.",
		},
		{
			name:    "empty",
			profile: store.UserProfile{},
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(&tt.profile))
		})
	}
}

func TestUserContext_CachesRenderedText(t *testing.T) {
	f := &fakeProfiles{profiles: map[string]*store.UserProfile{
		"u-1": {UserID: "u-1", Role: "Founder", Company: "Beta"},
	}}
	p := newProvider(f)
	ctx := context.Background()

	first, err := p.UserContext(ctx, "u-1")
	require.NoError(t, err)
	second, err := p.UserContext(ctx, "u-1")
	require.NoError(t, err)

	assert.Equal(t, "Founder at Beta.", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.calls)
}

func TestUserContext_UnknownUser(t *testing.T) {
	p := newProvider(&fakeProfiles{})

	text, err := p.UserContext(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, text)

	text, err = p.UserContext(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestUserContext_StoreError(t *testing.T) {
	p := newProvider(&fakeProfiles{err: errors.New("connection refused")})

	_, err := p.UserContext(context.Background(), "u-1")
	assert.ErrorContains(t, err, "connection refused")
}

func TestRecordInteraction_RefreshesCachedContext(t *testing.T) {
	f := &fakeProfiles{profiles: map[string]*store.UserProfile{
		"u-1": {UserID: "u-1", Role: "Founder", Company: "Beta", RecentTopics: []string{"people", "finance"}},
	}}
	p := newProvider(f)
	ctx := context.Background()

	before, err := p.UserContext(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Founder at Beta. Recently discussed: people, finance.", before)

	require.NoError(t, p.RecordInteraction(ctx, "u-1", []string{"market", "finance"}))

	require.Len(t, f.upserts, 1)
	assert.Equal(t, []string{"market", "finance", "people"}, f.upserts[0].RecentTopics)
	assert.Equal(t, "Founder", f.upserts[0].Role, "the rest of the profile is preserved")

	after, err := p.UserContext(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Founder at Beta. Recently discussed: market, finance, people.", after)
	assert.Equal(t, 3, f.calls, "cache was dropped so the profile was read again")
}

func TestRecordInteraction_CreatesProfile(t *testing.T) {
	f := &fakeProfiles{}
	p := newProvider(f)

	require.NoError(t, p.RecordInteraction(context.Background(), "new-user", []string{"strategy"}))

	require.Len(t, f.upserts, 1)
	assert.Equal(t, store.UserProfile{UserID: "new-user", RecentTopics: []string{"strategy"}}, f.upserts[0])
}

func TestRecordInteraction_NoOpAndErrors(t *testing.T) {
	ctx := context.Background()

	f := &fakeProfiles{}
	p := newProvider(f)
	require.NoError(t, p.RecordInteraction(ctx, "", []string{"market"}))
	require.NoError(t, p.RecordInteraction(ctx, "u-1", nil))
	assert.Empty(t, f.upserts)
	assert.Zero(t, f.calls)

	err := newProvider(&fakeProfiles{err: errors.New("connection refused")}).RecordInteraction(ctx, "u-1", []string{"market"})
	assert.ErrorContains(t, err, "connection refused")

	err = newProvider(&fakeProfiles{upsertErr: errors.New("disk full")}).RecordInteraction(ctx, "u-1", []string{"market"})
	assert.ErrorContains(t, err, "disk full")
}

func TestMergeTopics(t *testing.T) {
	tests := []struct {
		name            string
		fresh, existing []string
		limit           int
		want            []string
	}{
		{"fresh first", []string{"market"}, []string{"finance"}, 5, []string{"market", "finance"}},
		{"repeats dropped", []string{"finance", "market"}, []string{"market", "people"}, 5, []string{"finance", "market", "people"}},
		{"capped", []string{"a", "b"}, []string{"c", "d"}, 3, []string{"a", "b", "c"}},
		{"empty entries skipped", []string{"", "a"}, nil, 5, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeTopics(tt.fresh, tt.existing, tt.limit))
		})
	}
}
