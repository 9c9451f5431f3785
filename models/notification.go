package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NotificationLike    = "like"
	NotificationComment = "comment"
	NotificationFollow  = "follow"
	NotificationNewPost = "newPost"
)

type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Receiver  primitive.ObjectID  `bson:"receiver" json:"receiver"`
	Sender    primitive.ObjectID  `bson:"sender" json:"sender"`
	Type      string              `bson:"type" json:"type"`
	Post      *primitive.ObjectID `bson:"post,omitempty" json:"post,omitempty"`
	Content   string              `bson:"content" json:"content"`
	IsRead    bool                `bson:"isRead" json:"isRead"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}

// NotificationPostSummary is the related-post slice populated for reads.
type NotificationPostSummary struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Description string             `bson:"description" json:"description"`
	Image       Image              `bson:"image" json:"image"`
}

// NotificationView is a notification with sender and related post populated.
type NotificationView struct {
	Notification `bson:",inline"`
	SenderInfo   *UserSummary             `bson:"senderInfo,omitempty" json:"senderInfo,omitempty"`
	PostInfo     *NotificationPostSummary `bson:"postInfo,omitempty" json:"postInfo,omitempty"`
}
