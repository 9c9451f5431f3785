package handlers

import (
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"snapgram/apperror"
	"snapgram/database"
	"snapgram/middleware"
	"snapgram/models"
)

type CreateNotificationRequest struct {
	Receiver string `json:"receiver" binding:"required"`
	Type     string `json:"type" binding:"required,oneof=like comment follow newPost"`
	Post     string `json:"post"`
	Content  string `json:"content"`
}

// CreateNotification is the direct creation path, separate from the
// automatic fan-outs. The acting user is always the sender.
func (h *Handler) CreateNotification(c *gin.Context) {
	user := middleware.CurrentUser(c)
	var req CreateNotificationRequest
	if !bindJSON(c, &req) {
		return
	}

	receiver, err := primitive.ObjectIDFromHex(req.Receiver)
	if err != nil {
		fail(c, apperror.BadRequest("Invalid receiver"))
		return
	}

	n := models.Notification{
		Receiver:  receiver,
		Sender:    user.ID,
		Type:      req.Type,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if req.Post != "" {
		postID, err := primitive.ObjectIDFromHex(req.Post)
		if err != nil {
			fail(c, apperror.BadRequest("Invalid post"))
			return
		}
		n.Post = &postID
	}

	if err := h.Notifications.CreateNotification(c.Request.Context(), &n); err != nil {
		fail(c, err)
		return
	}
	h.Queue.Push(n)

	c.JSON(http.StatusCreated, gin.H{"message": "success", "notification": n})
}

func (h *Handler) GetNotifications(c *gin.Context) {
	user := middleware.CurrentUser(c)
	notifications, err := h.Notifications.NotificationsFor(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "success",
		"count":         len(notifications),
		"notifications": notifications,
	})
}

// MarkAsRead flags a notification read. Notifications addressed to someone
// else read as not found.
func (h *Handler) MarkAsRead(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	n, err := h.Notifications.MarkRead(c.Request.Context(), id, user.ID)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Notification not found"))
			return
		}
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success", "notification": n})
}

// SubscribePush upserts the acting user's browser push subscription.
func (h *Handler) SubscribePush(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var sub webpush.Subscription
	if err := c.ShouldBindJSON(&sub); err != nil || sub.Endpoint == "" {
		fail(c, apperror.BadRequest("Invalid subscription"))
		return
	}

	err := h.Push.SaveSubscription(c.Request.Context(), &models.PushSubscription{
		UserID: user.ID,
		Sub:    sub,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "success"})
}

// GetVapidPublicKey hands the frontend the key it needs to subscribe.
func (h *Handler) GetVapidPublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "success",
		"publicKey": h.Cfg.VAPIDPublicKey,
	})
}
