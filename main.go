package main

import (
	"context"
	"os"
	"strings"

	"heartlink/internal/config"
	"heartlink/internal/database"
	"heartlink/internal/handlers"
	"heartlink/internal/middleware"
	"heartlink/internal/redis"
	"heartlink/internal/services"
	"heartlink/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	cfg := config.Load()
	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	if err := database.SeedHobbies(db); err != nil {
		logrus.WithError(err).Fatal("Failed to seed hobbies")
	}

	redisClient, err := redis.Initialize(cfg.RedisURL)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to Redis")
	}

	storage, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage")
	}

	push, err := services.NewPushService(context.Background(), cfg, db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize push notifications")
	}

	hub := websocket.NewHub()
	go hub.Run()

	matchService := services.NewMatchService(db, hub, push)
	chatService := services.NewChatService(db, redisClient, matchService, cfg.ChatRefreshCooldown)
	messageService := services.NewMessageService(db, chatService, hub, push)
	deckService := services.NewDeckService(db, matchService, cfg.DeckSize)
	callService := services.NewCallService(redisClient, chatService, hub, cfg.CallRoomTTL)

	authHandler := handlers.NewAuthHandler(db, redisClient, cfg, chatService, deckService)
	userHandler := handlers.NewUserHandler(db, redisClient, cfg, storage, push)
	matchHandler := handlers.NewMatchHandler(matchService, deckService)
	messageHandler := handlers.NewMessageHandler(chatService, messageService)
	callHandler := handlers.NewCallHandler(callService)
	adminHandler := handlers.NewAdminHandler(db, redisClient, cfg)

	router := setupRoutes(db, authHandler, userHandler, matchHandler, messageHandler, callHandler, adminHandler, hub)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	logrus.WithField("port", port).Info("Server starting")
	if err := router.Run(":" + port); err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}
}

func setupLogging(cfg *config.Config) {
	if strings.EqualFold(cfg.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)
}

func setupRoutes(db *gorm.DB, authHandler *handlers.AuthHandler, userHandler *handlers.UserHandler,
	matchHandler *handlers.MatchHandler, messageHandler *handlers.MessageHandler,
	callHandler *handlers.CallHandler, adminHandler *handlers.AdminHandler, hub *websocket.Hub) *gin.Engine {

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/verify-otp", authHandler.VerifyOTP)
			auth.POST("/resend-otp", authHandler.ResendOTP)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", middleware.AuthRequired(), authHandler.Logout)
		}

		users := v1.Group("/users")
		users.Use(middleware.AuthRequired())
		{
			users.GET("/profile", userHandler.GetProfile)
			users.PUT("/profile", userHandler.UpdateProfile)
			users.POST("/profile/photo", userHandler.UploadPhoto)
			users.DELETE("/profile/photo/:id", userHandler.DeletePhoto)
			users.GET("/hobbies", userHandler.ListHobbies)
			users.GET("/:user_id", userHandler.GetUser)
			users.POST("/block/:user_id", userHandler.BlockUser)
			users.DELETE("/block/:user_id", userHandler.UnblockUser)
			users.POST("/report", userHandler.ReportUser)
			users.POST("/device", userHandler.RegisterDevice)
		}

		discover := v1.Group("/discover")
		discover.Use(middleware.AuthRequired())
		{
			discover.POST("/deck", matchHandler.NewDeck)
			discover.GET("/deck/current", matchHandler.CurrentCandidate)
			discover.POST("/deck/like", matchHandler.SwipeLike)
			discover.POST("/deck/pass", matchHandler.SwipePass)
		}

		matches := v1.Group("/matches")
		matches.Use(middleware.AuthRequired())
		{
			matches.POST("/like/:user_id", matchHandler.LikeUser)
			matches.POST("/pass/:user_id", matchHandler.PassUser)
			matches.GET("/", matchHandler.GetMatches)
			matches.DELETE("/:match_id", matchHandler.Unmatch)
		}

		chats := v1.Group("/chats")
		chats.Use(middleware.AuthRequired())
		{
			chats.GET("/", messageHandler.GetConversations)
			chats.GET("/unread", messageHandler.GetUnreadTotal)
			chats.GET("/:channel_id/messages", messageHandler.GetMessages)
			chats.POST("/:channel_id/messages", messageHandler.SendMessage)
			chats.PUT("/:channel_id/read", messageHandler.MarkAsRead)
			chats.POST("/messages/:message_id/recall", messageHandler.RecallMessage)
		}

		calls := v1.Group("/calls")
		calls.Use(middleware.AuthRequired())
		{
			calls.POST("/", callHandler.StartCall)
			calls.POST("/:call_id/join", callHandler.JoinCall)
			calls.POST("/:call_id/leave", callHandler.LeaveCall)
		}

		v1.GET("/ws", middleware.AuthRequired(), func(c *gin.Context) {
			websocket.HandleWebSocket(hub, c)
		})

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(db))
		{
			admin.GET("/users", adminHandler.GetUsers)
			admin.GET("/users/:id", adminHandler.GetUser)
			admin.PUT("/users/:id/status", adminHandler.UpdateUserStatus)
			admin.GET("/reports", adminHandler.GetReports)
			admin.PUT("/reports/:id/status", adminHandler.UpdateReportStatus)
			admin.GET("/analytics", adminHandler.GetAnalytics)
		}
	}

	return router
}
