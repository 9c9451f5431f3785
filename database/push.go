package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"snapgram/models"
)

// SaveSubscription upserts the user's browser push subscription.
func (s *Store) SaveSubscription(ctx context.Context, sub *models.PushSubscription) error {
	_, err := s.subscriptions.UpdateOne(ctx,
		bson.M{"userId": sub.UserID},
		bson.M{"$set": bson.M{"userId": sub.UserID, "sub": sub.Sub}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Store) SubscriptionFor(ctx context.Context, userID primitive.ObjectID) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	err := s.subscriptions.FindOne(ctx, bson.M{"userId": userID}).Decode(&sub)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// DeleteSubscription drops an expired or revoked subscription.
func (s *Store) DeleteSubscription(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.subscriptions.DeleteOne(ctx, bson.M{"userId": userID})
	return err
}
