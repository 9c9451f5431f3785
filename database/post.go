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

// authorLookup resolves a post's userId into the embedded author summary.
var authorLookup = []bson.D{
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

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	_, err := s.posts.InsertOne(ctx, post)
	return err
}

func (s *Store) PostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Store) PostWithAuthor(ctx context.Context, id primitive.ObjectID) (*models.PostView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
	}
	pipeline = append(pipeline, authorLookup...)

	views, err := s.aggregatePosts(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrNotFound
	}
	return &views[0], nil
}

// RecentPosts runs the full list pipeline: filter+search, sort, pagination,
// author population and optional projection.
func (s *Store) RecentPosts(ctx context.Context, q *ListQuery) ([]models.PostView, error) {
	pipeline := mongo.Pipeline{}
	if match := q.Match(); len(match) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: q.Sort}},
		bson.D{{Key: "$skip", Value: q.Skip()}},
		bson.D{{Key: "$limit", Value: q.Limit}},
	)
	pipeline = append(pipeline, authorLookup...)
	if len(q.Projection) > 0 {
		// Keep the populated author visible alongside the allow-list.
		projection := append(bson.D{{Key: "author", Value: 1}}, q.Projection...)
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: projection}})
	}
	return s.aggregatePosts(ctx, pipeline)
}

func (s *Store) UpdatePost(ctx context.Context, id primitive.ObjectID, upd models.PostUpdate) (*models.Post, error) {
	set := bson.M{"updatedAt": time.Now()}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.Tags != nil {
		set["tags"] = upd.Tags
	}
	if upd.Image != nil {
		set["image"] = *upd.Image
	}

	var post models.Post
	err := s.posts.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost removes the post and cascades its comment documents in the same
// transaction, so no orphan comments or dangling references survive.
func (s *Store) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	return s.withTxn(ctx, func(sc mongo.SessionContext) error {
		res, err := s.posts.DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}
		_, err = s.comments.DeleteMany(sc, bson.M{"postId": id})
		return err
	})
}

// ToggleLike adds or removes the user from the post's like set and returns
// the post as it was after the toggle.
func (s *Store) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error) {
	post, err := s.PostByID(ctx, postID)
	if err != nil {
		return nil, false, err
	}

	liked := true
	update := bson.M{"$addToSet": bson.M{"likes": userID}}
	for _, id := range post.Likes {
		if id == userID {
			liked = false
			update = bson.M{"$pull": bson.M{"likes": userID}}
			break
		}
	}

	var updated models.Post
	err = s.posts.FindOneAndUpdate(ctx,
		bson.M{"_id": postID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}
	return &updated, liked, nil
}

func (s *Store) PostsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.PostView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
	}
	pipeline = append(pipeline, authorLookup...)
	return s.aggregatePosts(ctx, pipeline)
}

func (s *Store) LikedPosts(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	cursor, err := s.posts.Find(ctx,
		bson.M{"likes": userID},
		options.Find().SetProjection(bson.D{{Key: "updatedAt", Value: 0}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Store) aggregatePosts(ctx context.Context, pipeline mongo.Pipeline) ([]models.PostView, error) {
	cursor, err := s.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	views := []models.PostView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, err
	}
	return views, nil
}
