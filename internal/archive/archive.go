// Package archive keeps the complete package of every run in MongoDB so
// past answers can be replayed and audited.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
)

const collection = "runs"

// Document is one archived run. Package holds the full pipeline state as
// it would be returned to the caller.
type Document struct {
	RunID         string         `bson:"runId"`
	UserID        string         `bson:"userId,omitempty"`
	WorkspaceID   string         `bson:"workspaceId,omitempty"`
	Question      string         `bson:"question"`
	Success       bool           `bson:"success"`
	QualityPassed bool           `bson:"qualityPassed"`
	Version       int            `bson:"version"`
	Package       map[string]any `bson:"package"`
	ArchivedAt    time.Time      `bson:"archivedAt"`
}

func newDocument(s *orchestrator.PipelineState) (*Document, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode run %s: %w", s.RunID, err)
	}
	var pkg map[string]any
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", s.RunID, err)
	}
	return &Document{
		RunID:         s.RunID,
		UserID:        s.Request.UserID,
		WorkspaceID:   s.Request.WorkspaceID,
		Question:      s.Request.Question,
		Success:       s.Success,
		QualityPassed: s.Quality.Passed,
		Version:       s.Version,
		Package:       pkg,
		ArchivedAt:    time.Now().UTC(),
	}, nil
}

type Archive struct {
	runs *mongo.Collection
}

func New(db *mongo.Database) *Archive {
	return &Archive{runs: db.Collection(collection)}
}

// Connect opens a client for uri and returns the archive over database.
func Connect(ctx context.Context, uri, database string) (*Archive, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return New(client.Database(database)), client.Disconnect, nil
}

// SaveRun upserts the run by id. It satisfies orchestrator.Persister.
func (a *Archive) SaveRun(ctx context.Context, s *orchestrator.PipelineState) error {
	doc, err := newDocument(s)
	if err != nil {
		return err
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := a.runs.ReplaceOne(ctx, bson.M{"runId": doc.RunID}, doc, opts); err != nil {
		return fmt.Errorf("archive run %s: %w", doc.RunID, err)
	}
	return nil
}

// Get returns the archived run, or nil when there is none.
func (a *Archive) Get(ctx context.Context, runID string) (*Document, error) {
	var doc Document
	err := a.runs.FindOne(ctx, bson.M{"runId": runID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &doc, nil
}
