package database

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"snapgram/models"
)

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	_, err := s.users.InsertOne(ctx, user)
	return err
}

func (s *Store) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ConfirmUser flips confirmed false -> true exactly once; an already
// confirmed (or unknown) email reports ErrNotFound.
func (s *Store) ConfirmUser(ctx context.Context, email string) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"email": strings.ToLower(email), "confirmed": false},
		bson.M{"$set": bson.M{"confirmed": true, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetResetCode(ctx context.Context, email, code string) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"email": strings.ToLower(email)},
		bson.M{"$set": bson.M{"code": code, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetPassword swaps the hash, clears the one-time code and stamps
// passwordChangedAt so previously issued tokens go stale.
func (s *Store) ResetPassword(ctx context.Context, email, passwordHash string) error {
	now := time.Now()
	res, err := s.users.UpdateOne(ctx,
		bson.M{"email": strings.ToLower(email)},
		bson.M{"$set": bson.M{
			"password":          passwordHash,
			"code":              "",
			"passwordChangedAt": now,
			"updatedAt":         now,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkLoggedIn(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"loggedIn": true, "updatedAt": time.Now()}},
	)
	return err
}

// ListUsers returns the public fields of every user plus the total count.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, int64, error) {
	projection := bson.D{
		{Key: "firstName", Value: 1},
		{Key: "lastName", Value: 1},
		{Key: "email", Value: 1},
		{Key: "profileImage", Value: 1},
		{Key: "createdAt", Value: 1},
		{Key: "updatedAt", Value: 1},
	}
	cursor, err := s.users.Find(ctx, bson.M{}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, err
	}

	count, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	return users, count, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd models.UserUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now()}
	if upd.FirstName != nil {
		set["firstName"] = *upd.FirstName
	}
	if upd.LastName != nil {
		set["lastName"] = *upd.LastName
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.ProfileImage != nil {
		set["profileImage"] = *upd.ProfileImage
	}

	var user models.User
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Follow adds target to the follower's following set and the follower to the
// target's followers set, both inside one transaction. Returns the target's
// follower count after the change.
func (s *Store) Follow(ctx context.Context, userID, targetID primitive.ObjectID) (int, error) {
	var followers int
	err := s.withTxn(ctx, func(sc mongo.SessionContext) error {
		res, err := s.users.UpdateOne(sc,
			bson.M{"_id": userID, "following": bson.M{"$ne": targetID}},
			bson.M{"$addToSet": bson.M{"following": targetID}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			// Either the follower is gone or the edge already exists.
			if _, err := s.UserByID(sc, userID); err != nil {
				return err
			}
			return ErrAlreadyFollowing
		}

		var target models.User
		err = s.users.FindOneAndUpdate(sc,
			bson.M{"_id": targetID},
			bson.M{"$addToSet": bson.M{"followers": userID}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&target)
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		followers = len(target.Followers)
		return nil
	})
	return followers, err
}

// Unfollow is the inverse of Follow with the same transactional shape.
func (s *Store) Unfollow(ctx context.Context, userID, targetID primitive.ObjectID) (int, error) {
	var followers int
	err := s.withTxn(ctx, func(sc mongo.SessionContext) error {
		res, err := s.users.UpdateOne(sc,
			bson.M{"_id": userID, "following": targetID},
			bson.M{"$pull": bson.M{"following": targetID}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			if _, err := s.UserByID(sc, userID); err != nil {
				return err
			}
			return ErrNotFollowing
		}

		var target models.User
		err = s.users.FindOneAndUpdate(sc,
			bson.M{"_id": targetID},
			bson.M{"$pull": bson.M{"followers": userID}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&target)
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		followers = len(target.Followers)
		return nil
	})
	return followers, err
}

func (s *Store) FollowersOf(ctx context.Context, id primitive.ObjectID) ([]primitive.ObjectID, error) {
	user, err := s.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Followers, nil
}

func (s *Store) SavePost(ctx context.Context, userID, postID primitive.ObjectID) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID, "savedPosts": bson.M{"$ne": postID}},
		bson.M{"$push": bson.M{"savedPosts": postID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.UserByID(ctx, userID); err != nil {
			return err
		}
		return ErrAlreadySaved
	}
	return nil
}

func (s *Store) UnsavePost(ctx context.Context, userID, postID primitive.ObjectID) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID, "savedPosts": postID},
		bson.M{"$pull": bson.M{"savedPosts": postID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.UserByID(ctx, userID); err != nil {
			return err
		}
		return ErrNotSaved
	}
	return nil
}

// SavedPosts resolves the user's saved post ids in saved order, dropping ids
// whose posts have since been deleted.
func (s *Store) SavedPosts(ctx context.Context, userID primitive.ObjectID) ([]models.SavedPost, error) {
	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.SavedPosts) == 0 {
		return []models.SavedPost{}, nil
	}

	cursor, err := s.posts.Find(ctx,
		bson.M{"_id": bson.M{"$in": user.SavedPosts}},
		options.Find().SetProjection(bson.D{
			{Key: "description", Value: 1},
			{Key: "image", Value: 1},
			{Key: "likes", Value: 1},
		}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var found []models.SavedPost
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]models.SavedPost, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	saved := make([]models.SavedPost, 0, len(found))
	for _, id := range user.SavedPosts {
		if p, ok := byID[id]; ok {
			saved = append(saved, p)
		}
	}
	return saved, nil
}
