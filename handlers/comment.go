package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"snapgram/apperror"
	"snapgram/database"
	"snapgram/middleware"
	"snapgram/models"
)

type CommentRequest struct {
	Comment string `json:"comment" binding:"required,max=500"`
}

// CreateComment adds a comment to a post, keeping the post's comment list in
// step, and notifies the post owner unless they commented themselves.
func (h *Handler) CreateComment(c *gin.Context) {
	user := middleware.CurrentUser(c)
	postID, ok := objectIDParam(c, "postId")
	if !ok {
		return
	}
	var req CommentRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	post, err := h.Posts.PostByID(ctx, postID)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Post not found"))
			return
		}
		fail(c, err)
		return
	}

	now := time.Now()
	comment := &models.Comment{
		ID:        primitive.NewObjectID(),
		UserID:    user.ID,
		PostID:    postID,
		Comment:   req.Comment,
		Replies:   []models.Reply{},
		Likes:     []primitive.ObjectID{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Comments.CreateComment(ctx, comment); err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Post not found"))
			return
		}
		fail(c, err)
		return
	}

	if post.UserID != user.ID {
		n := models.Notification{
			Receiver:  post.UserID,
			Sender:    user.ID,
			Type:      models.NotificationComment,
			Post:      &post.ID,
			Content:   fmt.Sprintf("%s %s commented on your post", user.FirstName, user.LastName),
			CreatedAt: now,
		}
		if err := h.Notifications.CreateNotification(ctx, &n); err != nil {
			fail(c, err)
			return
		}
		h.Queue.Push(n)
	}

	c.JSON(http.StatusCreated, gin.H{"message": "success", "comment": comment})
}

// UpdateComment edits a comment's text. Only the comment owner may edit.
func (h *Handler) UpdateComment(c *gin.Context) {
	user := middleware.CurrentUser(c)
	postID, ok := objectIDParam(c, "postId")
	if !ok {
		return
	}
	commentID, ok := objectIDParam(c, "commentId")
	if !ok {
		return
	}
	var req CommentRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	comment, err := h.Comments.CommentByID(ctx, commentID)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Comment not found"))
			return
		}
		fail(c, err)
		return
	}
	if comment.PostID != postID {
		fail(c, apperror.NotFound("Comment not found"))
		return
	}
	if comment.UserID != user.ID {
		fail(c, apperror.Forbidden("You can only edit your own comments"))
		return
	}

	updated, err := h.Comments.UpdateCommentText(ctx, commentID, req.Comment)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success", "comment": updated})
}

// DeleteComment removes an owned comment and pulls it from the parent post.
func (h *Handler) DeleteComment(c *gin.Context) {
	user := middleware.CurrentUser(c)
	postID, ok := objectIDParam(c, "postId")
	if !ok {
		return
	}
	commentID, ok := objectIDParam(c, "commentId")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	comment, err := h.Comments.CommentByID(ctx, commentID)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Comment not found"))
			return
		}
		fail(c, err)
		return
	}
	if comment.PostID != postID {
		fail(c, apperror.NotFound("Comment not found"))
		return
	}
	if comment.UserID != user.ID {
		fail(c, apperror.Forbidden("You can only delete your own comments"))
		return
	}

	if err := h.Comments.DeleteComment(ctx, postID, commentID); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func (h *Handler) GetComments(c *gin.Context) {
	postID, ok := objectIDParam(c, "postId")
	if !ok {
		return
	}
	comments, err := h.Comments.CommentsForPost(c.Request.Context(), postID)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Post not found"))
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "success",
		"commentCount": len(comments),
		"comments":     comments,
	})
}

// ReplyToComment appends an embedded reply. Replies carry no notification.
func (h *Handler) ReplyToComment(c *gin.Context) {
	user := middleware.CurrentUser(c)
	postID, ok := objectIDParam(c, "postId")
	if !ok {
		return
	}
	commentID, ok := objectIDParam(c, "commentId")
	if !ok {
		return
	}
	var req CommentRequest
	if !bindJSON(c, &req) {
		return
	}

	reply := models.Reply{
		UserID:    user.ID,
		Comment:   req.Comment,
		Likes:     []primitive.ObjectID{},
		CreatedAt: time.Now(),
	}
	if err := h.Comments.AddReply(c.Request.Context(), postID, commentID, reply); err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Comment not found"))
			return
		}
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "success", "reply": reply})
}

// LikeComment toggles the acting user's like on a comment. No notification.
func (h *Handler) LikeComment(c *gin.Context) {
	user := middleware.CurrentUser(c)
	postID, ok := objectIDParam(c, "postId")
	if !ok {
		return
	}
	commentID, ok := objectIDParam(c, "commentId")
	if !ok {
		return
	}

	liked, count, err := h.Comments.ToggleCommentLike(c.Request.Context(), postID, commentID, user.ID)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Comment not found"))
			return
		}
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "success",
		"liked":      liked,
		"likesCount": count,
	})
}
