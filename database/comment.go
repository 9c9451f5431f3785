package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"snapgram/models"
)

// CreateComment inserts the comment and appends its id to the parent post's
// comment list inside one transaction, keeping the back-reference invariant.
func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	return s.withTxn(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.comments.InsertOne(sc, comment); err != nil {
			return err
		}
		res, err := s.posts.UpdateOne(sc,
			bson.M{"_id": comment.PostID},
			bson.M{"$push": bson.M{"comments": comment.ID}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Store) CommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	err := s.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&comment)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *Store) UpdateCommentText(ctx context.Context, id primitive.ObjectID, text string) (*models.Comment, error) {
	var comment models.Comment
	err := s.comments.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"comment": text, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&comment)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment removes the document and pulls its id from the parent post,
// transactionally.
func (s *Store) DeleteComment(ctx context.Context, postID, commentID primitive.ObjectID) error {
	return s.withTxn(ctx, func(sc mongo.SessionContext) error {
		res, err := s.comments.DeleteOne(sc, bson.M{"_id": commentID})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}
		_, err = s.posts.UpdateOne(sc,
			bson.M{"_id": postID},
			bson.M{"$pull": bson.M{"comments": commentID}},
		)
		return err
	})
}

// CommentsForPost returns the post's comments with authors populated, oldest
// first (insertion order).
func (s *Store) CommentsForPost(ctx context.Context, postID primitive.ObjectID) ([]models.CommentView, error) {
	if _, err := s.PostByID(ctx, postID); err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"postId": postID}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: "userId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "author"},
			{Key: "pipeline", Value: bson.A{bson.D{{Key: "$project", Value: bson.D{
				{Key: "firstName", Value: 1},
				{Key: "lastName", Value: 1},
				{Key: "profileImage", Value: 1},
			}}}}},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$author"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}

	cursor, err := s.comments.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	views := []models.CommentView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// AddReply appends an embedded reply to the comment, which must belong to the
// given post.
func (s *Store) AddReply(ctx context.Context, postID, commentID primitive.ObjectID, reply models.Reply) error {
	res, err := s.comments.UpdateOne(ctx,
		bson.M{"_id": commentID, "postId": postID},
		bson.M{
			"$push": bson.M{"replies": reply},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleCommentLike flips the user's membership in the comment's like set and
// returns the resulting state.
func (s *Store) ToggleCommentLike(ctx context.Context, postID, commentID, userID primitive.ObjectID) (bool, int, error) {
	var comment models.Comment
	err := s.comments.FindOne(ctx, bson.M{"_id": commentID, "postId": postID}).Decode(&comment)
	if err == mongo.ErrNoDocuments {
		return false, 0, ErrNotFound
	}
	if err != nil {
		return false, 0, err
	}

	liked := true
	update := bson.M{"$addToSet": bson.M{"likes": userID}}
	for _, id := range comment.Likes {
		if id == userID {
			liked = false
			update = bson.M{"$pull": bson.M{"likes": userID}}
			break
		}
	}

	var updated models.Comment
	err = s.comments.FindOneAndUpdate(ctx,
		bson.M{"_id": commentID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return false, 0, err
	}
	return liked, len(updated.Likes), nil
}
