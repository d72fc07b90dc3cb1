package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/lanchat/internal/core/domain"
)

const (
	messagesCollection = "messages"
	countersCollection = "counters"
	messageSequence    = "message_id"
)

// MessageRepository stores chat history keyed by a monotonically increasing
// sequence, so ordering by _id is insertion order.
type MessageRepository struct {
	coll     *mongo.Collection
	counters *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{
		coll:     db.Collection(messagesCollection),
		counters: db.Collection(countersCollection),
	}
}

type mongoMessage struct {
	ID        int64  `bson:"_id"`
	Username  string `bson:"username"`
	Timestamp string `bson:"timestamp"`
	Content   string `bson:"content"`
}

func (r *MessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	id, err := r.nextSequence(ctx)
	if err != nil {
		return err
	}

	doc := mongoMessage{
		ID:        id,
		Username:  msg.Username,
		Timestamp: msg.Timestamp,
		Content:   msg.Content,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.ID = id
	return nil
}

// Recent fetches the newest limit messages and returns them oldest first.
func (r *MessageRepository) Recent(ctx context.Context, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoMessage
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	out := make([]domain.Message, len(docs))
	for i, d := range docs {
		out[len(docs)-1-i] = domain.Message{
			ID:        d.ID,
			Username:  d.Username,
			Timestamp: d.Timestamp,
			Content:   d.Content,
		}
	}
	return out, nil
}

func (r *MessageRepository) nextSequence(ctx context.Context) (int64, error) {
	res := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": messageSequence},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, fmt.Errorf("next message id: %w", err)
	}
	return doc.Seq, nil
}
