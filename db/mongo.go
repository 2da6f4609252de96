package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aichat/log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultDatabase        = "aichat"
	ConversationCollection = "conversations"
	connectTimeout         = 10 * time.Second
)

type conversationDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId"`
	Title     string             `bson:"title"`
	Messages  []Message          `bson:"messages"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *conversationDoc) toConversation() *Conversation {
	msgs := d.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	return &Conversation{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Title:     d.Title,
		Messages:  msgs,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// MongoStore keeps one document per conversation with messages embedded.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if database == "" {
		database = DefaultDatabase
	}
	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(connCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	log.Info("connected to mongo database ", database)
	s := NewMongoStoreWithCollection(client.Database(database).Collection(ConversationCollection))
	s.client = client
	return s, nil
}

// NewMongoStoreWithCollection wraps an existing collection; Close is a no-op.
func NewMongoStoreWithCollection(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll, now: time.Now}
}

func (s *MongoStore) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	now := s.now()
	doc := conversationDoc{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Title:     title,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return doc.toConversation(), nil
}

func (s *MongoStore) GetUserConversations(ctx context.Context, userID string) ([]Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	var docs []conversationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	convs := make([]Conversation, 0, len(docs))
	for i := range docs {
		convs = append(convs, *docs[i].toConversation())
	}
	return convs, nil
}

func (s *MongoStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var doc conversationDoc
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation %s: %w", id, err)
	}
	return doc.toConversation(), nil
}

func (s *MongoStore) AddMessageToConversation(ctx context.Context, id string, msg Message) ([]Message, error) {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	updated := appendMessage(conv.Messages, msg, s.now())
	if err := s.rewriteMessages(ctx, id, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *MongoStore) MarkMessageAnimated(ctx context.Context, id, messageID string) error {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if !markAnimated(conv.Messages, messageID) {
		return nil
	}
	oid, _ := primitive.ObjectIDFromHex(id)
	_, err = s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"messages": conv.Messages}})
	if err != nil {
		return fmt.Errorf("update animated flag: %w", err)
	}
	return nil
}

// rewriteMessages replaces the whole array and stamps updatedAt with server time.
func (s *MongoStore) rewriteMessages(ctx context.Context, id string, messages []Message) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	update := bson.M{
		"$set":         bson.M{"messages": messages},
		"$currentDate": bson.M{"updatedAt": true},
	}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return fmt.Errorf("update messages: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteConversation(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

func (s *MongoStore) UpdateConversationTitle(ctx context.Context, id, title string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	update := bson.M{
		"$set":         bson.M{"title": title},
		"$currentDate": bson.M{"updatedAt": true},
	}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
