// Package database owns the MongoDB connection and implements the per-entity
// repositories. The Store is created once at boot and injected into the
// handlers; nothing in here is package-level state.
package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Sentinel errors translated to HTTP statuses at the handler layer.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyFollowing = errors.New("already following")
	ErrNotFollowing     = errors.New("not following")
	ErrAlreadySaved     = errors.New("already saved")
	ErrNotSaved         = errors.New("not saved")
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database

	users         *mongo.Collection
	posts         *mongo.Collection
	comments      *mongo.Collection
	notifications *mongo.Collection
	subscriptions *mongo.Collection
}

// Connect dials MongoDB, pings it and binds the collections.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	return &Store{
		client:        client,
		db:            db,
		users:         db.Collection("users"),
		posts:         db.Collection("posts"),
		comments:      db.Collection("comments"),
		notifications: db.Collection("notifications"),
		subscriptions: db.Collection("subscriptions"),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// withTxn runs fn inside a session transaction so related documents change
// together (follow/unfollow, comment append, cascade delete).
func (s *Store) withTxn(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// EnsureIndexes creates the uniqueness and lookup indexes the data model
// relies on. Safe to call on every boot.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "isRead", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = s.subscriptions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
