package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/config"
	"github.com/huddleapp/huddle/internal/handler"
	"github.com/huddleapp/huddle/internal/middleware"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/realtime"
	"github.com/huddleapp/huddle/internal/repository"
	"github.com/huddleapp/huddle/internal/service"
	"github.com/huddleapp/huddle/migrations"
	"github.com/huddleapp/huddle/pkg/auth"
	"github.com/huddleapp/huddle/pkg/mailer"
	"github.com/huddleapp/huddle/pkg/push"
	"github.com/huddleapp/huddle/pkg/storage"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// @title           Huddle Messaging API
// @version         1.0
// @description     Real-time conversational messaging engine: conversations, messages, reactions, presence, call signaling and notifications.

// @contact.name   API Support
// @contact.email  support@huddle.local

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	log.Printf("🚀 Starting Huddle API Server [env=%s]", cfg.App.Env)

	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.App.Env == "production" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Printf("⚠️  Migration warning: %v", err)
		log.Println("📦 Falling back to GORM AutoMigrate...")
		if err := db.AutoMigrate(
			&model.User{},
			&model.UserDevice{},
			&model.Conversation{},
			&model.ConversationParticipant{},
			&model.Message{},
			&model.MessageAttachment{},
			&model.Reaction{},
			&model.ChatCall{},
			&model.CallParticipant{},
			&model.ChatNotification{},
		); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
	}
	log.Println("✅ Database migrated successfully")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// ==================== Email (SMTP / Mailpit) ====================
	mailClient := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	})
	log.Printf("📧 SMTP configured: %s:%s", cfg.SMTP.Host, cfg.SMTP.Port)

	// ==================== Initialize Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	reactRepo := repository.NewReactionRepository(db)
	callRepo := repository.NewCallRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	// FCM push (disabled when credentials are absent)
	pushService, err := push.NewPushService(cfg.Push.CredentialsFile, userRepo)
	if err != nil {
		log.Printf("⚠️ Push service init failed: %v", err)
	}

	// MinIO Storage
	minioStorage, err := storage.NewMinIO(storage.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		PublicURL: cfg.MinIO.PublicURL,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		log.Printf("⚠️  MinIO not available: %v (file upload disabled)", err)
	}
	if minioStorage != nil {
		log.Println("✅ Connected to MinIO")
	}

	// WebSocket Hub with the presence disconnect hook. The hook is wired
	// after the presence service exists because they reference each other.
	var presenceService *service.PresenceService
	hub := realtime.NewHub(rdb, func(userID uuid.UUID, online bool) {
		if presenceService != nil {
			presenceService.HandleStatusChange(userID, online)
		}
	})
	presenceService = service.NewPresenceService(rdb, userRepo, convRepo, hub)

	// Services
	notifService := service.NewNotificationService(notifRepo, convRepo, userRepo, hub, pushService, mailClient)
	convService := service.NewConversationService(db, convRepo, msgRepo, userRepo, minioStorage, notifService, hub)
	msgService := service.NewMessageService(db, convRepo, msgRepo, reactRepo, userRepo, minioStorage, notifService, hub)
	reactService := service.NewReactionService(db, convRepo, msgRepo, reactRepo, userRepo, notifService, hub)
	callService := service.NewCallService(db, callRepo, convRepo, msgRepo, userRepo, notifService, hub)

	// Start Hub event loop
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// Handlers
	convHandler := handler.NewConversationHandler(convService)
	msgHandler := handler.NewMessageHandler(msgService, reactService)
	callHandler := handler.NewCallHandler(callService)
	notifHandler := handler.NewNotificationHandler(notifService)
	userHandler := handler.NewUserHandler(userRepo, presenceService)
	uploadHandler := handler.NewUploadHandler(minioStorage)
	wsHandler := handler.NewWSHandler(hub, msgService, presenceService, callService, jwtManager)

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Serve swagger.json at /docs/swagger.json to avoid conflict with /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	url := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))

	// Global middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "huddle-api",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// ==================== API Routes ====================
	api := router.Group("/api/v1")
	{
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(jwtManager, rdb))
		{
			// Users & presence
			protected.GET("/users/search", userHandler.SearchUsers)
			protected.POST("/users/devices", userHandler.RegisterDevice)
			protected.GET("/users/:id/presence", userHandler.GetPresence)
			protected.POST("/presence/online", userHandler.GetOnlineUsers)

			// Conversations
			protected.GET("/conversations", convHandler.GetConversations)
			protected.POST("/conversations", convHandler.CreateConversation)
			protected.GET("/conversations/:id", convHandler.GetConversation)
			protected.PATCH("/conversations/:id", convHandler.UpdateConversation)
			protected.POST("/conversations/:id/participants", convHandler.AddParticipants)
			protected.DELETE("/conversations/:id/participants/:userId", convHandler.RemoveParticipant)
			protected.PATCH("/conversations/:id/settings", convHandler.UpdateSettings)

			// Messages
			protected.GET("/conversations/:id/messages", msgHandler.GetMessages)
			protected.POST("/conversations/:id/messages", msgHandler.SendMessage)
			protected.POST("/conversations/:id/read", msgHandler.MarkAsRead)
			protected.PATCH("/messages/:id", msgHandler.EditMessage)
			protected.DELETE("/messages/:id", msgHandler.DeleteMessage)

			// Reactions
			protected.POST("/messages/:id/reactions", msgHandler.AddReaction)
			protected.DELETE("/messages/:id/reactions/:type", msgHandler.RemoveReaction)

			// Calls
			protected.POST("/calls", callHandler.StartCall)
			protected.POST("/calls/:id/join", callHandler.JoinCall)
			protected.POST("/calls/:id/decline", callHandler.DeclineCall)
			protected.POST("/calls/:id/leave", callHandler.LeaveCall)
			protected.POST("/calls/:id/end", callHandler.EndCall)
			protected.GET("/conversations/:id/call", callHandler.GetActiveCall)

			// Notifications
			protected.GET("/notifications", notifHandler.GetNotifications)
			protected.GET("/notifications/unread-count", notifHandler.GetUnreadCount)
			protected.POST("/notifications/:id/read", notifHandler.MarkAsRead)
			protected.POST("/notifications/read-all", notifHandler.MarkAllAsRead)
			protected.DELETE("/notifications/:id", notifHandler.DeleteNotification)

			// Upload
			protected.POST("/upload", uploadHandler.UploadFile)
			protected.POST("/upload/multiple", uploadHandler.UploadMultiple)
		}
	}

	// WebSocket endpoint (auth via query parameter)
	router.GET("/ws", wsHandler.HandleWebSocket)

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	log.Printf("🌐 Huddle API running on http://0.0.0.0:%s", cfg.App.Port)
	log.Printf("📋 API docs: http://0.0.0.0:%s/swagger/index.html", cfg.App.Port)
	log.Printf("🔌 WebSocket: ws://0.0.0.0:%s/ws?token=<jwt>", cfg.App.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	hubCancel()
	log.Println("✅ Server exited gracefully")
}
