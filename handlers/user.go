package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"snapgram/apperror"
	"snapgram/database"
	"snapgram/media"
	"snapgram/middleware"
	"snapgram/models"
)

const confirmTokenTTL = 2 * time.Minute

type SignUpRequest struct {
	FirstName string `json:"firstName" binding:"required,max=50"`
	LastName  string `json:"lastName" binding:"required,max=50"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,password"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgetPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required,password"`
}

type FollowRequest struct {
	Action string `json:"action" binding:"required,oneof=follow unfollow"`
}

// SignUp creates an unconfirmed account and emails the confirmation links.
// The account stands even if the email cannot be delivered.
func (h *Handler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.Users.UserByEmail(ctx, req.Email); err == nil {
		fail(c, apperror.Conflict("Email already in use"))
		return
	} else if err != database.ErrNotFound {
		fail(c, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.Cfg.BcryptCost)
	if err != nil {
		fail(c, err)
		return
	}

	user := models.NewUser(req.FirstName, req.LastName, req.Email, string(hash))
	if err := h.Users.CreateUser(ctx, user); err != nil {
		fail(c, err)
		return
	}

	confirmToken, err := middleware.SignEmailToken(h.Cfg.ConfirmSecret, user.Email, confirmTokenTTL)
	if err != nil {
		fail(c, err)
		return
	}
	resendToken, err := middleware.SignEmailToken(h.Cfg.RefreshSecret, user.Email, 0)
	if err != nil {
		fail(c, err)
		return
	}

	html := confirmationEmail(user.FirstName,
		fmt.Sprintf("%s/api/v1/auth/user/confirmEmail/%s", h.Cfg.PublicBaseURL, confirmToken),
		fmt.Sprintf("%s/api/v1/auth/user/confirmEmailRefresher/%s", h.Cfg.PublicBaseURL, resendToken),
	)
	if err := h.Mail.Send(ctx, user.Email, "Confirm your Snapgram account", html); err != nil {
		fail(c, apperror.Internal("Account created but the confirmation email could not be sent"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "success",
		"userId":  user.ID.Hex(),
	})
}

// ConfirmEmail consumes a confirmation token. It flips confirmed exactly
// once; a repeat call reports failure instead of double-confirming.
func (h *Handler) ConfirmEmail(c *gin.Context) {
	email, err := middleware.ParseEmailToken(h.Cfg.ConfirmSecret, c.Param("token"))
	if err != nil {
		fail(c, err)
		return
	}

	if err := h.Users.ConfirmUser(c.Request.Context(), email); err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.BadRequest("Email already confirmed or user not found"))
			return
		}
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

// RefreshConfirmation mints a fresh confirmation token off the long-lived
// resend token and re-sends the email.
func (h *Handler) RefreshConfirmation(c *gin.Context) {
	email, err := middleware.ParseEmailToken(h.Cfg.RefreshSecret, c.Param("refreshToken"))
	if err != nil {
		fail(c, err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.Users.UserByEmail(ctx, email)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("User not found"))
			return
		}
		fail(c, err)
		return
	}
	if user.Confirmed {
		fail(c, apperror.BadRequest("Email already confirmed"))
		return
	}

	confirmToken, err := middleware.SignEmailToken(h.Cfg.ConfirmSecret, user.Email, confirmTokenTTL)
	if err != nil {
		fail(c, err)
		return
	}
	resendToken, err := middleware.SignEmailToken(h.Cfg.RefreshSecret, user.Email, 0)
	if err != nil {
		fail(c, err)
		return
	}

	html := confirmationEmail(user.FirstName,
		fmt.Sprintf("%s/api/v1/auth/user/confirmEmail/%s", h.Cfg.PublicBaseURL, confirmToken),
		fmt.Sprintf("%s/api/v1/auth/user/confirmEmailRefresher/%s", h.Cfg.PublicBaseURL, resendToken),
	)
	if err := h.Mail.Send(ctx, user.Email, "Confirm your Snapgram account", html); err != nil {
		fail(c, apperror.Internal("Confirmation email could not be sent"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

// ForgetPassword stores a short one-time code on the user and emails it.
func (h *Handler) ForgetPassword(c *gin.Context) {
	var req ForgetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	user, err := h.Users.UserByEmail(ctx, req.Email)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("No user found with this email"))
			return
		}
		fail(c, err)
		return
	}

	code, err := randomCode(3)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.Users.SetResetCode(ctx, user.Email, code); err != nil {
		fail(c, err)
		return
	}

	if err := h.Mail.Send(ctx, user.Email, "Your Snapgram password reset code", resetCodeEmail(user.FirstName, code)); err != nil {
		fail(c, apperror.Internal("Reset email could not be sent"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

// ResetPassword swaps the password if the one-time code matches. Stamping
// passwordChangedAt invalidates every previously issued session token.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	user, err := h.Users.UserByEmail(ctx, req.Email)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("No user found with this email"))
			return
		}
		fail(c, err)
		return
	}
	if user.Code == "" || user.Code != req.Code {
		fail(c, apperror.BadRequest("Invalid reset code"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.Cfg.BcryptCost)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.Users.ResetPassword(ctx, user.Email, string(hash)); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

// SignIn exchanges credentials for a session token. Only confirmed accounts
// may sign in.
func (h *Handler) SignIn(c *gin.Context) {
	var req SignInRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	user, err := h.Users.UserByEmail(ctx, req.Email)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.Unauthorized("Incorrect email or password"))
			return
		}
		fail(c, err)
		return
	}
	if !user.Confirmed {
		fail(c, apperror.Unauthorized("Please confirm your email first"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		fail(c, apperror.Unauthorized("Incorrect email or password"))
		return
	}

	token, err := middleware.SignSession(h.Cfg.JWTSecret, user)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.Users.MarkLoggedIn(ctx, user.ID); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"token":   token,
		"user": gin.H{
			"id":           user.ID.Hex(),
			"firstName":    user.FirstName,
			"lastName":     user.LastName,
			"email":        user.Email,
			"profileImage": user.ProfileImage,
		},
	})
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, count, err := h.Users.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"count":   count,
		"users":   users,
	})
}

func (h *Handler) UserByID(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	user, err := h.Users.UserByID(c.Request.Context(), id)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("User not found"))
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "user": user})
}

func (h *Handler) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "success", "user": middleware.CurrentUser(c)})
}

// UpdateAccount applies partial profile edits. A new profile image replaces
// the old one on the media host, destroying the previous object best-effort.
func (h *Handler) UpdateAccount(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	var upd models.UserUpdate
	if v, ok := c.GetPostForm("firstName"); ok {
		upd.FirstName = &v
	}
	if v, ok := c.GetPostForm("lastName"); ok {
		upd.LastName = &v
	}
	if v, ok := c.GetPostForm("bio"); ok {
		upd.Bio = &v
	}

	if file, err := c.FormFile("profileImage"); err == nil {
		src, err := file.Open()
		if err != nil {
			fail(c, apperror.BadRequest("Could not read uploaded image"))
			return
		}
		defer src.Close()

		image, err := h.Media.Upload(ctx, src, media.FolderProfiles)
		if err != nil {
			fail(c, apperror.Internal("Image upload failed"))
			return
		}
		if user.ProfileImage.PublicID != "" {
			if err := h.Media.Destroy(ctx, user.ProfileImage.PublicID); err != nil {
				logDestroyFailure(user.ProfileImage.PublicID, err)
			}
		}
		upd.ProfileImage = &image
	}

	updated, err := h.Users.UpdateProfile(ctx, user.ID, upd)
	if err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("User not found"))
			return
		}
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success", "user": updated})
}

// DeleteAccount removes the acting user's record only. Their posts and
// comments remain.
func (h *Handler) DeleteAccount(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.Users.DeleteUser(c.Request.Context(), user.ID); err != nil {
		if err == database.ErrNotFound {
			fail(c, apperror.NotFound("User not found"))
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

// FollowUser follows or unfollows the target, updating both sides in one
// transaction. Redundant follow/unfollow is a 400. A follow notification is
// emitted unless the user follows themselves.
func (h *Handler) FollowUser(c *gin.Context) {
	user := middleware.CurrentUser(c)
	targetID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req FollowRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	var followers int
	var err error
	if req.Action == "follow" {
		followers, err = h.Users.Follow(ctx, user.ID, targetID)
	} else {
		followers, err = h.Users.Unfollow(ctx, user.ID, targetID)
	}
	switch err {
	case nil:
	case database.ErrAlreadyFollowing:
		fail(c, apperror.BadRequest("You already follow this user"))
		return
	case database.ErrNotFollowing:
		fail(c, apperror.BadRequest("You do not follow this user"))
		return
	case database.ErrNotFound:
		fail(c, apperror.NotFound("User not found"))
		return
	default:
		fail(c, err)
		return
	}

	if req.Action == "follow" && targetID != user.ID {
		n := models.Notification{
			Receiver:  targetID,
			Sender:    user.ID,
			Type:      models.NotificationFollow,
			Content:   fmt.Sprintf("%s %s started following you", user.FirstName, user.LastName),
			CreatedAt: time.Now(),
		}
		if err := h.Notifications.CreateNotification(ctx, &n); err != nil {
			fail(c, err)
			return
		}
		h.Queue.Push(n)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "success",
		"followersCount": followers,
	})
}

func confirmationEmail(name, confirmURL, resendURL string) string {
	return fmt.Sprintf(`<div style="font-family:sans-serif">
<h2>Welcome to Snapgram, %s!</h2>
<p>Confirm your email to activate your account. The link below is valid for two minutes:</p>
<p><a href="%s">Confirm my email</a></p>
<p>Link expired? <a href="%s">Request a new one</a>.</p>
</div>`, name, confirmURL, resendURL)
}

func resetCodeEmail(name, code string) string {
	return fmt.Sprintf(`<div style="font-family:sans-serif">
<h2>Hi %s,</h2>
<p>Your password reset code is:</p>
<h3>%s</h3>
<p>If you did not request this, you can ignore this email.</p>
</div>`, name, code)
}
