package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/truongminh/classboard/internal/config"
	"github.com/truongminh/classboard/internal/database"
	"github.com/truongminh/classboard/internal/handlers"
	"github.com/truongminh/classboard/internal/media"
	"github.com/truongminh/classboard/internal/middleware"
	"github.com/truongminh/classboard/internal/routes"
	"github.com/truongminh/classboard/internal/store/mongostore"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	// Connect to MongoDB. A malformed URI or unreachable store is fatal:
	// nothing works without the document store.
	log.Printf("Connecting to MongoDB...")
	mongoClient, db, err := database.ConnectMongo(cfg.MongoURI)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.DisconnectMongo(mongoClient)

	// Connect to Redis (invalidation pub/sub, transport sessions, rate limits)
	log.Printf("Connecting to Redis...")
	rdb, err := database.ConnectRedis(cfg.RedisURI)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis(rdb)

	// Initialize Cloudinary uploads (optional)
	var uploadService *media.CloudinaryService
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		uploadService, err = media.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("Image uploads will not be available")
		} else {
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. Image uploads will not be available")
	}

	docStore := mongostore.New(db, rdb, cfg.TenantID)
	gateway := handlers.NewGateway(docStore, rdb, cfg.AuthToken)
	uploads := handlers.NewUploadHandler(uploadService)

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.IsProduction() {
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.GlobalRateLimit)
		log.Println("✅ Production security enabled (security headers, per-IP rate limiting)")
	} else {
		r.Use(middleware.NewRateLimiter(rdb).Middleware)
	}

	// Health check (no rate limit concerns at this volume)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r, gateway, uploads)

	log.Println("📋 Registered routes:")
	log.Println("  GET  /health")
	log.Println("  POST /api/upload")
	log.Println("  GET  /ws/board")

	log.Printf("🚀 Classboard backend running on :%s (tenant %s)", cfg.Port, cfg.TenantID)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
