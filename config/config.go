// config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

var (
	Port          string
	MongoURI      string
	DatabaseName  string
	JWTKey        []byte
	JWTExpiration time.Duration

	// External blob storage (UploadThing-compatible API)
	BlobAPIURL string
	BlobSecret string

	// Optional shared rate-limit backend. Empty means in-process counters.
	RedisAddr string

	RateLimit  int
	RateWindow time.Duration

	// Cron spec for the orphaned-pending-entity scan.
	ReconcileSchedule string
)

func LoadConfig() {
	Port = os.Getenv("PORT")
	if Port == "" {
		Port = "8080"
	}

	MongoURI = os.Getenv("MONGO_URI")
	if MongoURI == "" {
		MongoURI = "mongodb://localhost:27017"
	}

	DatabaseName = os.Getenv("MONGO_DB")
	if DatabaseName == "" {
		DatabaseName = "propman"
	}

	JWTKey = []byte(os.Getenv("JWT_SECRET"))
	if len(JWTKey) == 0 {
		JWTKey = []byte("secret")
	}

	expireStr := os.Getenv("JWT_EXPIRE")
	dur := 24 * time.Hour
	if expireStr != "" {
		if expireStr == "7d" {
			dur = 7 * 24 * time.Hour
		} else {
			var err error
			dur, err = time.ParseDuration(expireStr)
			if err != nil {
				log.Printf("Invalid JWT_EXPIRE: %s, using 24h", expireStr)
				dur = 24 * time.Hour
			}
		}
	}
	JWTExpiration = dur

	BlobAPIURL = os.Getenv("BLOB_API_URL")
	if BlobAPIURL == "" {
		BlobAPIURL = "https://api.uploadthing.com"
	}
	BlobSecret = os.Getenv("BLOB_SECRET")

	RedisAddr = os.Getenv("REDIS_ADDR")

	RateLimit = 20
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			RateLimit = n
		}
	}

	RateWindow = time.Minute
	if v := os.Getenv("RATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			RateWindow = d
		}
	}

	ReconcileSchedule = os.Getenv("RECONCILE_SCHEDULE")
	if ReconcileSchedule == "" {
		ReconcileSchedule = "@hourly"
	}
}
