// Package handlers implements the business operations behind the REST
// surface. Every handler reads its collaborators from the Handler struct, so
// tests can swap in fakes for the store, the media host, the mailer and the
// notification queue.
package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"snapgram/apperror"
	"snapgram/config"
	"snapgram/database"
	"snapgram/models"
)

// UserStore is the user-repository slice the handlers depend on.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	ConfirmUser(ctx context.Context, email string) error
	SetResetCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, passwordHash string) error
	MarkLoggedIn(ctx context.Context, id primitive.ObjectID) error
	ListUsers(ctx context.Context) ([]models.User, int64, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, upd models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
	Follow(ctx context.Context, userID, targetID primitive.ObjectID) (int, error)
	Unfollow(ctx context.Context, userID, targetID primitive.ObjectID) (int, error)
	SavePost(ctx context.Context, userID, postID primitive.ObjectID) error
	UnsavePost(ctx context.Context, userID, postID primitive.ObjectID) error
	SavedPosts(ctx context.Context, userID primitive.ObjectID) ([]models.SavedPost, error)
}

type PostStore interface {
	CreatePost(ctx context.Context, post *models.Post) error
	PostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	PostWithAuthor(ctx context.Context, id primitive.ObjectID) (*models.PostView, error)
	RecentPosts(ctx context.Context, q *database.ListQuery) ([]models.PostView, error)
	UpdatePost(ctx context.Context, id primitive.ObjectID, upd models.PostUpdate) (*models.Post, error)
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error)
	PostsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.PostView, error)
	LikedPosts(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	CommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	UpdateCommentText(ctx context.Context, id primitive.ObjectID, text string) (*models.Comment, error)
	DeleteComment(ctx context.Context, postID, commentID primitive.ObjectID) error
	CommentsForPost(ctx context.Context, postID primitive.ObjectID) ([]models.CommentView, error)
	AddReply(ctx context.Context, postID, commentID primitive.ObjectID, reply models.Reply) error
	ToggleCommentLike(ctx context.Context, postID, commentID, userID primitive.ObjectID) (bool, int, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	NotificationsFor(ctx context.Context, userID primitive.ObjectID) ([]models.NotificationView, error)
	MarkRead(ctx context.Context, id, receiver primitive.ObjectID) (*models.Notification, error)
	LikeNotificationExists(ctx context.Context, receiver, sender, postID primitive.ObjectID) (bool, error)
}

type PushStore interface {
	SaveSubscription(ctx context.Context, sub *models.PushSubscription) error
}

// Uploader is the media relay contract.
type Uploader interface {
	Upload(ctx context.Context, content io.Reader, folder string) (models.Image, error)
	Destroy(ctx context.Context, publicID string) error
}

// Mailer delivers a single transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// NotificationQueue is the background notifier contract. Dispatch persists
// and pushes, Push only mirrors an already persisted notification.
type NotificationQueue interface {
	Dispatch(ns ...models.Notification)
	Push(n models.Notification)
}

// Handler bundles the collaborators every operation draws from.
type Handler struct {
	Users         UserStore
	Posts         PostStore
	Comments      CommentStore
	Notifications NotificationStore
	Push          PushStore
	Media         Uploader
	Mail          Mailer
	Queue         NotificationQueue
	Cfg           *config.Config
}

func New(store *database.Store, media Uploader, mail Mailer, queue NotificationQueue, cfg *config.Config) *Handler {
	return &Handler{
		Users:         store,
		Posts:         store,
		Comments:      store,
		Notifications: store,
		Push:          store,
		Media:         media,
		Mail:          mail,
		Queue:         queue,
		Cfg:           cfg,
	}
}

// RegisterValidators installs the custom rules on gin's binding engine. Must
// run once before the router serves traffic.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("password", validPassword)
	}
}

// validPassword requires at least 8 characters with both letters and digits.
func validPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if len(password) < 8 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// fail pushes the error onto the gin error list for the normalizer middleware.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

// bindJSON decodes and validates the body, surfacing the first violation as a
// 400 in plain language.
func bindJSON(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		fail(c, apperror.BadRequest(validationMessage(err)))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "email must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "password":
		return "password must be at least 8 characters and contain letters and numbers"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// objectIDParam parses a hex id path parameter.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		fail(c, apperror.BadRequest(fmt.Sprintf("Invalid %s", name)))
		return primitive.NilObjectID, false
	}
	return id, true
}

// logDestroyFailure records a failed media cleanup. Replace paths treat the
// old object as disposable, so this never fails the request.
func logDestroyFailure(publicID string, err error) {
	log.Warn().Err(err).Str("publicId", publicID).Msg("media destroy failed")
}

// randomCode returns n random bytes hex-encoded, used for reset codes and
// public post ids.
func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
