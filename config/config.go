package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config collects every environment knob the server needs. It is loaded once
// in main and handed to the components that use it.
type Config struct {
	Port    string
	GinMode string

	MongoURI string
	MongoDB  string

	// One signing secret per token family, matching the session / confirm /
	// resend split of the auth design.
	JWTSecret     string
	ConfirmSecret string
	RefreshSecret string

	BcryptCost int

	CloudinaryURL string

	ResendAPIKey string
	SenderEmail  string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	AllowOrigins  []string
	PublicBaseURL string
}

// Load reads .env (best effort) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getenv("PORT", "8080"),
		GinMode:         os.Getenv("GIN_MODE"),
		MongoURI:        getenv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:         getenv("MONGODB_DATABASE", "snapgram"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		ConfirmSecret:   os.Getenv("CONFIRMATION_SECRET"),
		RefreshSecret:   os.Getenv("CONFIRMATION_REFRESH_SECRET"),
		BcryptCost:      bcrypt.DefaultCost,
		CloudinaryURL:   os.Getenv("CLOUDINARY_URL"),
		ResendAPIKey:    os.Getenv("RESEND_API_KEY"),
		SenderEmail:     getenv("SENDER_EMAIL", "no-reply@snapgram.app"),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubscriber: getenv("VAPID_SUBSCRIBER", "mailto:admin@snapgram.app"),
		PublicBaseURL:   getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
	}

	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, errors.New("config: invalid BCRYPT_COST")
		}
		cfg.BcryptCost = cost
	}

	origins := getenv("ALLOW_ORIGINS", "http://localhost:5173,http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}

	if cfg.JWTSecret == "" || cfg.ConfirmSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("config: JWT_SECRET, CONFIRMATION_SECRET and CONFIRMATION_REFRESH_SECRET must be set")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
