package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const defaultBio = "🌟 Dreamer | Creator | Doer — sharing moments, insights, and a sprinkle of humor 😄"

// Image is a locator pair for media stored on the external host.
type Image struct {
	SecureURL string `bson:"secure_url" json:"secure_url"`
	PublicID  string `bson:"public_id" json:"public_id"`
}

type User struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	FirstName         string               `bson:"firstName" json:"firstName"`
	LastName          string               `bson:"lastName" json:"lastName"`
	Email             string               `bson:"email" json:"email"`
	Password          string               `bson:"password" json:"-"`
	ProfileImage      Image                `bson:"profileImage" json:"profileImage"`
	Followers         []primitive.ObjectID `bson:"followers" json:"followers"`
	Following         []primitive.ObjectID `bson:"following" json:"following"`
	SavedPosts        []primitive.ObjectID `bson:"savedPosts" json:"savedPosts"`
	Role              string               `bson:"role" json:"role"`
	Confirmed         bool                 `bson:"confirmed" json:"confirmed"`
	Bio               string               `bson:"bio" json:"bio"`
	LoggedIn          bool                 `bson:"loggedIn" json:"-"`
	Code              string               `bson:"code,omitempty" json:"-"`
	PasswordChangedAt time.Time            `bson:"passwordChangedAt,omitempty" json:"-"`
	CreatedAt         time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// NewUser builds an unconfirmed user with defaulted fields.
func NewUser(firstName, lastName, email, passwordHash string) *User {
	now := time.Now()
	return &User{
		ID:         primitive.NewObjectID(),
		FirstName:  firstName,
		LastName:   lastName,
		Email:      email,
		Password:   passwordHash,
		Followers:  []primitive.ObjectID{},
		Following:  []primitive.ObjectID{},
		SavedPosts: []primitive.ObjectID{},
		Role:       RoleUser,
		Bio:        defaultBio,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// UserSummary is the public slice of a user embedded in populated reads.
type UserSummary struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	FirstName    string             `bson:"firstName" json:"firstName"`
	LastName     string             `bson:"lastName" json:"lastName"`
	ProfileImage Image              `bson:"profileImage" json:"profileImage"`
}

// UserUpdate carries the partial profile fields of updateAccount.
// Nil means "leave unchanged".
type UserUpdate struct {
	FirstName    *string
	LastName     *string
	Bio          *string
	ProfileImage *Image
}
