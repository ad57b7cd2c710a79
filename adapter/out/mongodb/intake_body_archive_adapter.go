package mongodb

import (
	"context"
	"fmt"
	"time"

	"intake_server/core/domain"
	"intake_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// Flagged Mail Body Archive
// =============================================================================

const (
	collectionBodies = "flagged_bodies"

	defaultBodyTTLDays = 90
)

// BodyArchiveAdapter implements out.BodyArchive. Full bodies of flagged
// mail live here instead of bloating the relational audit row; a TTL index
// expires them once the review window has long passed.
type BodyArchiveAdapter struct {
	collection *mongo.Collection
	ttlDays    int
}

var _ out.BodyArchive = (*BodyArchiveAdapter)(nil)

// NewBodyArchiveAdapter creates a new BodyArchiveAdapter.
func NewBodyArchiveAdapter(db *mongo.Database, ttlDays int) *BodyArchiveAdapter {
	if ttlDays <= 0 {
		ttlDays = defaultBodyTTLDays
	}
	return &BodyArchiveAdapter{
		collection: db.Collection(collectionBodies),
		ttlDays:    ttlDays,
	}
}

// EnsureIndexes creates the unique message-id index and the TTL index.
func (a *BodyArchiveAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// bodyDocument represents the MongoDB document structure.
type bodyDocument struct {
	MessageID string    `bson:"message_id"`
	Text      string    `bson:"text"`
	HTML      string    `bson:"html,omitempty"`
	Preview   string    `bson:"preview"`
	StoredAt  time.Time `bson:"stored_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Store upserts the full body for one flagged message.
func (a *BodyArchiveAdapter) Store(ctx context.Context, messageID string, body *domain.EmailBody) error {
	now := time.Now().UTC()
	doc := bodyDocument{
		MessageID: messageID,
		Text:      body.Text,
		HTML:      body.HTML,
		Preview:   body.Preview,
		StoredAt:  now,
		ExpiresAt: now.AddDate(0, 0, a.ttlDays),
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"message_id": messageID}

	if _, err := a.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to archive body: %w", err)
	}
	return nil
}

// Get retrieves an archived body; nil when absent or expired.
func (a *BodyArchiveAdapter) Get(ctx context.Context, messageID string) (*domain.EmailBody, error) {
	var doc bodyDocument
	err := a.collection.FindOne(ctx, bson.M{"message_id": messageID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read archived body: %w", err)
	}

	return &domain.EmailBody{
		Text:    doc.Text,
		HTML:    doc.HTML,
		Preview: doc.Preview,
	}, nil
}
