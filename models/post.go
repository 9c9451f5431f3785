package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID   `bson:"userId" json:"userId"`
	Description string               `bson:"description" json:"description"`
	Tags        []string             `bson:"tags" json:"tags"`
	Location    string               `bson:"location,omitempty" json:"location"`
	Image       Image                `bson:"image" json:"image"`
	CustomID    string               `bson:"customId" json:"customId"`
	Likes       []primitive.ObjectID `bson:"likes" json:"likes"`
	Comments    []primitive.ObjectID `bson:"comments" json:"comments"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// PostView is a post with its author populated for read paths.
type PostView struct {
	Post   `bson:",inline"`
	Author *UserSummary `bson:"author,omitempty" json:"author,omitempty"`
}

// PostUpdate carries the partial fields of updatePost. Nil means unchanged.
type PostUpdate struct {
	Description *string
	Location    *string
	Tags        []string
	Image       *Image
}

// SavedPost is the trimmed projection returned by getSavedPosts.
type SavedPost struct {
	ID          primitive.ObjectID   `bson:"_id" json:"id"`
	Description string               `bson:"description" json:"description"`
	Image       Image                `bson:"image" json:"image"`
	Likes       []primitive.ObjectID `bson:"likes" json:"likes"`
}
