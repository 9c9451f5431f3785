package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"snapgram/apperror"
	"snapgram/models"
)

// ContextUserKey is where the guard attaches the authenticated user.
const ContextUserKey = "authUser"

// Claims is the session token payload: {userId, email, role}, iat only. The
// token carries no expiry; revocation happens through the staleness check.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// EmailClaims is the payload of confirmation / resend / reset tokens.
type EmailClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserLoader is the slice of the user repository the guard needs.
type UserLoader interface {
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// SignSession issues the bearer token returned by signin.
func SignSession(secret string, user *models.User) (string, error) {
	claims := &Claims{
		UserID: user.ID.Hex(),
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// SignEmailToken issues a confirmation-family token. A zero ttl means the
// token never expires (the resend token).
func SignEmailToken(secret, email string, ttl time.Duration) (string, error) {
	claims := &EmailClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseEmailToken verifies a confirmation-family token and returns its email.
func ParseEmailToken(secret, tokenString string) (string, error) {
	claims := &EmailClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, hmacKeyFunc(secret))
	if err != nil || !token.Valid {
		return "", apperror.BadRequest("Invalid or expired token")
	}
	if claims.Email == "" {
		return "", apperror.BadRequest("Invalid payload")
	}
	return claims.Email, nil
}

// Auth is the credential & session guard: bearer parse, HMAC verification,
// user load, staleness-after-password-change check, role membership. On
// success the loaded user is attached to the context.
func Auth(secret string, users UserLoader, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, apperror.Unauthorized("Token not found or invalid format"))
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWith(c, apperror.Unauthorized("Token not found or invalid format"))
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, hmacKeyFunc(secret))
		if err != nil || !token.Valid {
			abortWith(c, apperror.Unauthorized("Invalid token"))
			return
		}
		if claims.UserID == "" {
			abortWith(c, apperror.Unauthorized("Invalid payload"))
			return
		}
		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			abortWith(c, apperror.Unauthorized("Invalid payload"))
			return
		}

		user, err := users.UserByID(c.Request.Context(), userID)
		if err != nil {
			abortWith(c, apperror.Unauthorized("User not found"))
			return
		}

		// Tokens minted before the last password change are stale. Compared
		// in whole seconds, matching the token's iat resolution.
		if !user.PasswordChangedAt.IsZero() && claims.IssuedAt != nil {
			if claims.IssuedAt.Unix() < user.PasswordChangedAt.Unix() {
				abortWith(c, apperror.Unauthorized("Token expired, please login again"))
				return
			}
		}

		allowed := false
		for _, role := range roles {
			if user.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			abortWith(c, apperror.Forbidden("Sorry! You're not authorized"))
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

func hmacKeyFunc(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}
}

// CurrentUser returns the user the guard attached to the context.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ContextUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

func abortWith(c *gin.Context, err *apperror.Error) {
	_ = c.Error(err)
	c.Abort()
}
