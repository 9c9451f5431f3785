package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"snapgram/apperror"
	"snapgram/database"
	"snapgram/media"
	"snapgram/middleware"
	"snapgram/models"
)

const maxDescriptionLen = 500

// CreatePost stores a new post with its uploaded image and fans out a
// newPost notification to every follower through the background queue.
func (h *Handler) CreatePost(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	description := strings.TrimSpace(c.PostForm("description"))
	if description == "" {
		fail(c, apperror.BadRequest("description is required"))
		return
	}
	if len(description) > maxDescriptionLen {
		fail(c, apperror.BadRequest("description must be at most 500 characters"))
		return
	}

	file, err := c.FormFile("postImage")
	if err != nil {
		fail(c, apperror.BadRequest("Post image is required"))
		return
	}
	src, err := file.Open()
	if err != nil {
		fail(c, apperror.BadRequest("Could not read uploaded image"))
		return
	}
	defer src.Close()

	image, err := h.Media.Upload(ctx, src, media.FolderPosts)
	if err != nil {
		fail(c, apperror.Internal("Image upload failed"))
		return
	}

	customID, err := randomCode(4)
	if err != nil {
		fail(c, err)
		return
	}

	now := time.Now()
	post := &models.Post{
		UserID:      user.ID,
		Description: description,
		Tags:        formTags(c),
		Location:    c.PostForm("location"),
		Image:       image,
		CustomID:    customID,
		Likes:       []primitive.ObjectID{},
		Comments:    []primitive.ObjectID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	post.ID = primitive.NewObjectID()

	if err := h.Posts.CreatePost(ctx, post); err != nil {
		fail(c, err)
		return
	}

	if len(user.Followers) > 0 {
		ns := make([]models.Notification, 0, len(user.Followers))
		content := fmt.Sprintf("%s %s shared a new post", user.FirstName, user.LastName)
		for _, follower := range user.Followers {
			ns = append(ns, models.Notification{
				Receiver:  follower,
				Sender:    user.ID,
				Type:      models.NotificationNewPost,
				Post:      &post.ID,
				Content:   content,
				CreatedAt: now,
			})
		}
		h.Queue.Dispatch(ns...)
	}

	c.JSON(http.StatusCreated, gin.H{"message": "success", "post": post})
}

// UpdatePost edits a post's fields. Only the owner may edit; a replacement
// image destroys the previous remote object best-effort.
func (h *Handler) UpdatePost(c *gin.Context) {
	user := middleware.CurrentUser(c)
	postID, ok := objectIDParam(c, "id")
	if !ok {
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
	if post.UserID != user.ID {
		fail(c, apperror.Forbidden("You can only update your own posts"))
		return
	}

	var upd models.PostUpdate
	if v, ok := c.GetPostForm("description"); ok {
		v = strings.TrimSpace(v)
		if v == "" || len(v) > maxDescriptionLen {
			fail(c, apperror.BadRequest("description must be between 1 and 500 characters"))
			return
		}
		upd.Description = &v
	}
	if v, ok := c.GetPostForm("location"); ok {
		upd.Location = &v
	}
	if tags := formTags(c); tags != nil {
		upd.Tags = tags
	}

	if file, err := c.FormFile("postImage"); err == nil {
		src, err := file.Open()
		if err != nil {
			fail(c, apperror.BadRequest("Could not read uploaded image"))
			return
		}
		defer src.Close()

		image, err := h.Media.Upload(ctx, src, media.FolderPosts)
		if err != nil {
			fail(c, apperror.Internal("Image upload failed"))
			return
		}
		if post.Image.PublicID != "" {
			if err := h.Media.Destroy(ctx, post.Image.PublicID); err != nil {
				logDestroyFailure(post.Image.PublicID, err)
			}
		}
		upd.Image = &image
	}

	updated, err := h.Posts.UpdatePost(ctx, postID, upd)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Post not found"))
			return
		}
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success", "post": updated})
}

// DeletePost removes an owned post along with its comment documents.
func (h *Handler) DeletePost(c *gin.Context) {
	user := middleware.CurrentUser(c)
	postID, ok := objectIDParam(c, "id")
	if !ok {
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
	if post.UserID != user.ID {
		fail(c, apperror.Forbidden("You can only delete your own posts"))
		return
	}

	if err := h.Posts.DeletePost(ctx, postID); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

// GetRecentPosts runs the list pipeline over the query string: search,
// filters, sort, projection and pagination.
func (h *Handler) GetRecentPosts(c *gin.Context) {
	q := database.ParseListQuery(c.Request.URL.Query())
	posts, err := h.Posts.RecentPosts(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	if len(posts) == 0 {
		fail(c, apperror.NotFound("No posts found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"results": len(posts),
		"posts":   posts,
	})
}

func (h *Handler) GetSpecificPost(c *gin.Context) {
	postID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	post, err := h.Posts.PostWithAuthor(c.Request.Context(), postID)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Post not found"))
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "post": post})
}

// LikePost toggles the acting user's like. The first like by a non-owner
// notifies the author, at most once per (author, liker, post).
func (h *Handler) LikePost(c *gin.Context) {
	user := middleware.CurrentUser(c)
	postID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	post, liked, err := h.Posts.ToggleLike(ctx, postID, user.ID)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Post not found"))
			return
		}
		fail(c, err)
		return
	}

	if liked && post.UserID != user.ID {
		exists, err := h.Notifications.LikeNotificationExists(ctx, post.UserID, user.ID, post.ID)
		if err != nil {
			fail(c, err)
			return
		}
		if !exists {
			n := models.Notification{
				Receiver:  post.UserID,
				Sender:    user.ID,
				Type:      models.NotificationLike,
				Post:      &post.ID,
				Content:   fmt.Sprintf("%s %s liked your post", user.FirstName, user.LastName),
				CreatedAt: time.Now(),
			}
			if err := h.Notifications.CreateNotification(ctx, &n); err != nil {
				fail(c, err)
				return
			}
			h.Queue.Push(n)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "success",
		"liked":      liked,
		"likesCount": len(post.Likes),
	})
}

// SavePost adds the post to the acting user's saved list. Saving twice is a
// 400.
func (h *Handler) SavePost(c *gin.Context) {
	user := middleware.CurrentUser(c)
	postID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.Posts.PostByID(ctx, postID); err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("Post not found"))
			return
		}
		fail(c, err)
		return
	}

	if err := h.Users.SavePost(ctx, user.ID, postID); err != nil {
		if err == database.ErrAlreadySaved {
			fail(c, apperror.BadRequest("Post already saved"))
			return
		}
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func (h *Handler) DeleteSavedPost(c *gin.Context) {
	user := middleware.CurrentUser(c)
	postID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.Users.UnsavePost(c.Request.Context(), user.ID, postID); err != nil {
		if err == database.ErrNotSaved {
			fail(c, apperror.BadRequest("Post not in saved list"))
			return
		}
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func (h *Handler) GetSavedPosts(c *gin.Context) {
	user := middleware.CurrentUser(c)
	posts, err := h.Users.SavedPosts(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"count":   len(posts),
		"posts":   posts,
	})
}

func (h *Handler) GetUserPosts(c *gin.Context) {
	userID, ok := objectIDParam(c, "userId")
	if !ok {
		return
	}
	posts, err := h.Posts.PostsByUser(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	if len(posts) == 0 {
		fail(c, apperror.NotFound("No posts found for this user"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"results": len(posts),
		"posts":   posts,
	})
}

func (h *Handler) GetLikedPosts(c *gin.Context) {
	userID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	posts, err := h.Posts.LikedPosts(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"count":   len(posts),
		"posts":   posts,
	})
}

// formTags reads tags either as repeated form values or one comma-separated
// value. Returns nil when the field is absent.
func formTags(c *gin.Context) []string {
	values, ok := c.GetPostFormArray("tags")
	if !ok {
		return nil
	}
	tags := []string{}
	for _, v := range values {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}
