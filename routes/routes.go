package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"snapgram/config"
	"snapgram/handlers"
	"snapgram/middleware"
	"snapgram/models"
)

// SetupRouter wires the middleware chain and the full REST surface.
func SetupRouter(h *handlers.Handler, users middleware.UserLoader, cfg *config.Config) *gin.Engine {
	handlers.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Errors())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthcheck := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Snapgram API is running",
			"time":    time.Now().Unix(),
		})
	}
	router.GET("/", healthcheck)
	router.GET("/health", healthcheck)

	// 20 requests per minute per IP on the credential endpoints.
	limiter := middleware.NewIPRateLimiter(20, time.Minute)

	auth := middleware.Auth(cfg.JWTSecret, users, models.RoleUser, models.RoleAdmin)

	user := router.Group("/api/v1/auth/user")
	{
		user.POST("/signup", middleware.RateLimit(limiter), h.SignUp)
		user.POST("/signin", middleware.RateLimit(limiter), h.SignIn)
		user.GET("/confirmEmail/:token", h.ConfirmEmail)
		user.GET("/confirmEmailRefresher/:refreshToken", h.RefreshConfirmation)
		user.PATCH("/forgetPassword", middleware.RateLimit(limiter), h.ForgetPassword)
		user.PATCH("/resetPassword", h.ResetPassword)
		user.GET("/list", h.ListUsers)

		user.GET("/userByID/:id", auth, h.UserByID)
		user.GET("/profile", auth, h.GetProfile)
		user.PUT("/:id/follow", auth, h.FollowUser)
		user.PATCH("/updateProfile", auth, h.UpdateAccount)
		user.DELETE("/deleteProfile", auth, h.DeleteAccount)
	}

	post := router.Group("/api/v1/auth/post", auth)
	{
		post.POST("/create-post", h.CreatePost)
		post.GET("/recent-post", h.GetRecentPosts)
		post.GET("/saved-posts", h.GetSavedPosts)
		post.GET("/user-post/:userId", h.GetUserPosts)
		post.GET("/user/:id/liked", h.GetLikedPosts)
		post.GET("/:id", h.GetSpecificPost)
		post.PUT("/:id", h.UpdatePost)
		post.DELETE("/:id", h.DeletePost)
		post.PUT("/:id/like", h.LikePost)
		post.PUT("/:id/save", h.SavePost)
		post.DELETE("/:id/save", h.DeleteSavedPost)
	}

	comment := router.Group("/api/v1/auth/comment/:postId", auth)
	{
		comment.POST("/add", h.CreateComment)
		comment.GET("", h.GetComments)
		comment.PUT("/edit/:commentId", h.UpdateComment)
		comment.DELETE("/:commentId", h.DeleteComment)
		comment.POST("/:commentId/reply", h.ReplyToComment)
		comment.PATCH("/:commentId/like", h.LikeComment)
	}

	notification := router.Group("/api/v1/auth/notification", auth)
	{
		notification.POST("/create", h.CreateNotification)
		notification.GET("", h.GetNotifications)
		notification.PATCH("/:id/read", h.MarkAsRead)
		notification.POST("/subscribe", h.SubscribePush)
		notification.GET("/vapid-public-key", h.GetVapidPublicKey)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"message": "error", "err": "Endpoint not found"})
			return
		}
		c.Next()
	})

	return router
}
