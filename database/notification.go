package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"snapgram/models"
)

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.notifications.InsertOne(ctx, n)
	return err
}

// InsertNotifications is the batch path used by the new-post fan-out.
func (s *Store) InsertNotifications(ctx context.Context, ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	docs := make([]interface{}, len(ns))
	for i := range ns {
		docs[i] = ns[i]
	}
	_, err := s.notifications.InsertMany(ctx, docs)
	return err
}

// NotificationsFor lists the user's notifications newest first with the
// sender and related post populated.
func (s *Store) NotificationsFor(ctx context.Context, userID primitive.ObjectID) ([]models.NotificationView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"receiver": userID}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: "sender"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "senderInfo"},
			{Key: "pipeline", Value: bson.A{bson.D{{Key: "$project", Value: bson.D{
				{Key: "firstName", Value: 1},
				{Key: "lastName", Value: 1},
				{Key: "profileImage", Value: 1},
			}}}}},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$senderInfo"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "posts"},
			{Key: "localField", Value: "post"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "postInfo"},
			{Key: "pipeline", Value: bson.A{bson.D{{Key: "$project", Value: bson.D{
				{Key: "description", Value: 1},
				{Key: "image", Value: 1},
			}}}}},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$postInfo"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}

	cursor, err := s.notifications.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	views := []models.NotificationView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// MarkRead sets isRead on a notification addressed to receiver. A
// notification belonging to someone else reads as not found.
func (s *Store) MarkRead(ctx context.Context, id, receiver primitive.ObjectID) (*models.Notification, error) {
	var n models.Notification
	err := s.notifications.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "receiver": receiver},
		bson.M{"$set": bson.M{"isRead": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&n)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// LikeNotificationExists backs the at-most-one-like-notification invariant.
func (s *Store) LikeNotificationExists(ctx context.Context, receiver, sender, postID primitive.ObjectID) (bool, error) {
	count, err := s.notifications.CountDocuments(ctx, bson.M{
		"receiver": receiver,
		"sender":   sender,
		"type":     models.NotificationLike,
		"post":     postID,
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
