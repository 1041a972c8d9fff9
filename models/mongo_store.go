package models

import (
	"context"
	"errors"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"notesync/syncproto"
)

// mongoNote is the document shape in the notes collection.
type mongoNote struct {
	UserID         string    `bson:"user"`
	ID             string    `bson:"id"`
	Title          string    `bson:"title"`
	Content        string    `bson:"content"`
	ColorCategory  string    `bson:"colorCategory"`
	IsImportant    bool      `bson:"isImportant"`
	ChangedAt      int64     `bson:"changedAt"`
	AttachmentFile *string   `bson:"attachmentFile"`
	Deleted        bool      `bson:"deleted"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

func toMongoNote(userID string, n syncproto.Note) mongoNote {
	return mongoNote{
		UserID:         userID,
		ID:             n.ID,
		Title:          n.Title,
		Content:        n.Content,
		ColorCategory:  string(n.ColorCategory.Normalize()),
		IsImportant:    n.IsImportant,
		ChangedAt:      int64(n.ChangedDate),
		AttachmentFile: n.AttachmentFile,
		UpdatedAt:      time.Now().UTC(),
	}
}

func (m mongoNote) toDoc() NoteDoc {
	ts := syncproto.Timestamp(m.ChangedAt)
	return NoteDoc{
		Note: syncproto.Note{
			ID:             m.ID,
			Title:          m.Title,
			Content:        m.Content,
			ColorCategory:  syncproto.ColorCategory(m.ColorCategory).Normalize(),
			IsImportant:    m.IsImportant,
			ChangedDate:    ts,
			AttachmentFile: m.AttachmentFile,
		},
		UserID:     m.UserID,
		Deleted:    m.Deleted,
		ModifiedAt: ts,
		UpdatedAt:  m.UpdatedAt,
	}
}

// mongoStore keeps every user's notes in one collection keyed by (user, id).
type mongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// InitMongo connects to MongoDB and installs it as the active store.
func InitMongo(ctx context.Context, uri, dbName string) error {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return serr.Wrap(err, "failed to connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return serr.Wrap(err, "failed to ping mongodb")
	}

	coll := client.Database(dbName).Collection("notes")
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return serr.Wrap(err, "failed to create notes index")
	}

	store = &mongoStore{client: client, coll: coll}
	logger.Info("Note store opened", "backend", "mongo", "database", dbName)
	return nil
}

func (s *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return serr.Wrap(err, "failed to disconnect from mongodb")
	}
	return nil
}

func (s *mongoStore) Insert(ctx context.Context, userID string, note syncproto.Note) error {
	_, err := s.coll.InsertOne(ctx, toMongoNote(userID, note))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateNote
		}
		return serr.Wrap(err, "failed to insert note")
	}
	return nil
}

func (s *mongoStore) InsertMany(ctx context.Context, userID string, notes []syncproto.Note) (int, error) {
	if len(notes) == 0 {
		return 0, nil
	}
	docs := make([]any, 0, len(notes))
	for _, n := range notes {
		docs = append(docs, toMongoNote(userID, n))
	}

	_, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) {
			logger.Info("Bulk insert partially applied", "user", userID,
				"requested", len(docs), "failed", len(bwe.WriteErrors))
			return len(docs) - len(bwe.WriteErrors), nil
		}
		return 0, serr.Wrap(err, "failed to insert notes")
	}
	return len(docs), nil
}

func (s *mongoStore) UpdateIfNewer(ctx context.Context, userID string, note syncproto.Note) (UpdateOutcome, error) {
	filter := bson.M{
		"user":      userID,
		"id":        note.ID,
		"deleted":   false,
		"changedAt": bson.M{"$lt": int64(note.ChangedDate)},
	}
	update := bson.M{"$set": bson.M{
		"title":          note.Title,
		"content":        note.Content,
		"colorCategory":  string(note.ColorCategory.Normalize()),
		"isImportant":    note.IsImportant,
		"changedAt":      int64(note.ChangedDate),
		"attachmentFile": note.AttachmentFile,
		"updatedAt":      time.Now().UTC(),
	}}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return UpdateNotFound, serr.Wrap(err, "failed to update note")
	}
	if res.MatchedCount > 0 {
		return UpdateApplied, nil
	}
	return classifyMissedUpdate(ctx, s, userID, note.ID)
}

func (s *mongoStore) SoftDelete(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"user": userID, "id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"deleted": true, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return 0, serr.Wrap(err, "failed to soft-delete notes")
	}
	return int(res.MatchedCount), nil
}

func (s *mongoStore) Restore(ctx context.Context, userID string, note syncproto.Note) error {
	doc := toMongoNote(userID, note)
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"user": userID, "id": note.ID},
		bson.M{"$set": doc},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return serr.Wrap(err, "failed to restore note")
	}
	return nil
}

func (s *mongoStore) List(ctx context.Context, userID string, includeDeleted bool) ([]NoteDoc, error) {
	filter := bson.M{"user": userID}
	if !includeDeleted {
		filter["deleted"] = false
	}

	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "changedAt", Value: -1}}))
	if err != nil {
		return nil, serr.Wrap(err, "failed to list notes")
	}
	defer cur.Close(ctx)

	docs := []NoteDoc{}
	for cur.Next(ctx) {
		var m mongoNote
		if err := cur.Decode(&m); err != nil {
			logger.LogErr(err, "skipping undecodable note document", "user", userID)
			continue
		}
		docs = append(docs, m.toDoc())
	}
	if err := cur.Err(); err != nil {
		return nil, serr.Wrap(err, "failed iterating notes")
	}
	return docs, nil
}

func (s *mongoStore) Get(ctx context.Context, userID, id string) (*NoteDoc, error) {
	var m mongoNote
	err := s.coll.FindOne(ctx, bson.M{"user": userID, "id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, serr.Wrap(err, "failed to get note")
	}
	d := m.toDoc()
	return &d, nil
}
