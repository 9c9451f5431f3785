package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reply is embedded in its parent comment and has no standalone identity.
type Reply struct {
	UserID    primitive.ObjectID   `bson:"userId" json:"userId"`
	Comment   string               `bson:"comment" json:"comment"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
}

type Comment struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID   `bson:"userId" json:"userId"`
	PostID    primitive.ObjectID   `bson:"postId" json:"postId"`
	Comment   string               `bson:"comment" json:"comment"`
	Replies   []Reply              `bson:"replies" json:"replies"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// CommentView is a comment with its author populated.
type CommentView struct {
	Comment `bson:",inline"`
	Author  *UserSummary `bson:"author,omitempty" json:"author,omitempty"`
}
