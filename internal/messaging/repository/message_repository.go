package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daycare_messaging_service/internal/messaging/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	messagesCollection = "messages"
	clocksCollection   = "tenant_clocks"
)

// MessageRepository append-only per-tenant message log
type MessageRepository interface {
	// Tick 取得 tenant 時鐘的下一個值，毫秒精度且嚴格遞增
	Tick(ctx context.Context, tenantID string) (time.Time, error)
	// Append 指派 ID 與 CreatedAt 後寫入
	Append(ctx context.Context, msg *domain.Message) error
	// ListThread page 1 為最新的 PerPage 則，每頁內由舊到新
	ListThread(ctx context.Context, tenantID string, key domain.ThreadKey, page domain.Page) ([]domain.Message, int64, error)
	// LastMessage nil when the thread is empty
	LastMessage(ctx context.Context, tenantID string, key domain.ThreadKey) (*domain.Message, error)
	CountUnread(ctx context.Context, tenantID string, key domain.ThreadKey, userID string, after time.Time) (int64, error)
	HasMessages(ctx context.Context, tenantID string, key domain.ThreadKey) (bool, error)
	// Get domain.ErrNotFound when the message is missing
	Get(ctx context.Context, tenantID, messageID string) (*domain.Message, error)
	// IndividualAnchors parent ids of every individual thread holding at least one message
	IndividualAnchors(ctx context.Context, tenantID string) ([]string, error)
}

type mongoMessageRepository struct {
	coll      *mongo.Collection
	clockColl *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &mongoMessageRepository{
		coll:      db.Collection(messagesCollection),
		clockColl: db.Collection(clocksCollection),
	}
}

// EnsureMessageIndexes create the indexes thread reads rely on
func EnsureMessageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(messagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "message_type", Value: 1},
			{Key: "thread_id", Value: 1},
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: -1},
		}},
	})
	return err
}

func threadFilter(tenantID string, key domain.ThreadKey) bson.M {
	return bson.M{
		"tenant_id":    tenantID,
		"message_type": key.Kind,
		"thread_id":    key.ID,
	}
}

// Tick 以 pipeline update 原子地計算 max(now, last+1)
func (r *mongoMessageRepository) Tick(ctx context.Context, tenantID string) (time.Time, error) {
	now := time.Now().UnixMilli()
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "ts", Value: bson.D{{Key: "$max", Value: bson.A{
				now,
				bson.D{{Key: "$add", Value: bson.A{
					bson.D{{Key: "$ifNull", Value: bson.A{"$ts", int64(0)}}},
					int64(1),
				}}},
			}}}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out struct {
		TS int64 `bson:"ts"`
	}
	if err := r.clockColl.FindOneAndUpdate(ctx, bson.M{"_id": tenantID}, update, opts).Decode(&out); err != nil {
		return time.Time{}, fmt.Errorf("tenant clock: %w", err)
	}
	return time.UnixMilli(out.TS).UTC(), nil
}

// Append 時鐘遞增與寫入在同一個 transaction，commit 前其他 Tick 會在 tenant_clocks 上等待
// (需要 replica set)
func (r *mongoMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	session, err := r.coll.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		ts, err := r.Tick(sc, msg.TenantID)
		if err != nil {
			return nil, err
		}
		prepare(msg, ts)

		return r.coll.InsertOne(sc, msg)
	}, options.Transaction().SetWriteConcern(writeconcern.Majority()))
	return err
}

func (r *mongoMessageRepository) ListThread(ctx context.Context, tenantID string, key domain.ThreadKey, page domain.Page) ([]domain.Message, int64, error) {
	filter := threadFilter(tenantID, key)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(page.Offset()).
		SetLimit(int64(page.PerPage))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	msgs := make([]domain.Message, 0, page.PerPage)
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, 0, err
	}
	reverse(msgs)
	return msgs, total, nil
}

func (r *mongoMessageRepository) LastMessage(ctx context.Context, tenantID string, key domain.ThreadKey) (*domain.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var msg domain.Message
	err := r.coll.FindOne(ctx, threadFilter(tenantID, key), opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *mongoMessageRepository) CountUnread(ctx context.Context, tenantID string, key domain.ThreadKey, userID string, after time.Time) (int64, error) {
	filter := threadFilter(tenantID, key)
	filter["created_at"] = bson.M{"$gt": after}
	filter["sender_id"] = bson.M{"$ne": userID}
	return r.coll.CountDocuments(ctx, filter)
}

func (r *mongoMessageRepository) HasMessages(ctx context.Context, tenantID string, key domain.ThreadKey) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, threadFilter(tenantID, key), options.Count().SetLimit(1))
	return n > 0, err
}

func (r *mongoMessageRepository) Get(ctx context.Context, tenantID, messageID string) (*domain.Message, error) {
	var msg domain.Message
	err := r.coll.FindOne(ctx, bson.M{"tenant_id": tenantID, "_id": messageID}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *mongoMessageRepository) IndividualAnchors(ctx context.Context, tenantID string) ([]string, error) {
	values, err := r.coll.Distinct(ctx, "thread_id", bson.M{
		"tenant_id":    tenantID,
		"message_type": domain.MessageTypeIndividual,
	})
	if err != nil {
		return nil, err
	}

	anchors := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok && id != "" {
			anchors = append(anchors, id)
		}
	}
	return anchors, nil
}

// prepare 指派 ID、時間與 thread_id
func prepare(msg *domain.Message, ts time.Time) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = ts
	msg.ThreadID = msg.Thread().ID
}

func reverse(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
