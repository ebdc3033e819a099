package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"realtime-service/internal/chat"
	"realtime-service/internal/config"
	"realtime-service/internal/db"
	"realtime-service/internal/delivery"
	"realtime-service/internal/handlers"
	"realtime-service/internal/middleware"
	"realtime-service/internal/notify"
	"realtime-service/internal/observability"
	"realtime-service/internal/presence"
	"realtime-service/internal/rabbitmq"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/ws"
)

func main() {
	cfg := config.Load()

	shutdownTracing := telemetry.InitTracing(context.Background(), "realtime-service", cfg.OTLPEndpoint)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer redisClient.Close()

	if cfg.AMQPURL != "" {
		eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("event publisher unavailable, events disabled: %v", err)
		} else {
			observability.SetPublisher(eventPublisher)
			defer eventPublisher.Close()
		}
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode: %s", rabbitmq.PublisherMode(auditPublisher))
	audit := telemetry.NewAuditEmitter(auditPublisher, observability.RoutingKey("audit"), "realtime-service", cfg.Environment)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	queueRepo := repositories.NewQueueRepo(database)
	counterRepo := repositories.NewCounterRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)
	engagementRepo := repositories.NewEngagementRepo(database)
	profileRepo := repositories.NewProfileRepo(database)

	registry := presence.NewRegistry()
	engine := delivery.NewEngine(registry)
	lastSeen := presence.NewLastSeenStore(redisClient)

	chatService := chat.NewService(conversationRepo, messageRepo, queueRepo, counterRepo, profileRepo, engine, lastSeen)
	notifyEngine := notify.NewEngine(notificationRepo, engagementRepo, counterRepo, profileRepo, engine)

	conversationHandler := handlers.NewConversationHandler(chatService, audit)
	messageHandler := handlers.NewMessageHandler(chatService, audit)
	notificationHandler := handlers.NewNotificationHandler(notifyEngine)
	engagementHandler := handlers.NewEngagementHandler(notifyEngine, audit)
	wsHandler := ws.NewHandler(registry, engine, chatService, lastSeen, cfg.JWTSecret)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("realtime-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.GET("/conversations", authMiddleware, conversationHandler.List)
	router.POST("/conversations", authMiddleware, conversationHandler.Create)
	router.GET("/conversations/:conversation_id", authMiddleware, conversationHandler.Get)
	router.POST("/conversations/:conversation_id/clear", authMiddleware, conversationHandler.Clear)
	router.DELETE("/conversations/:conversation_id", authMiddleware, conversationHandler.Delete)

	router.POST("/conversations/:conversation_id/messages", authMiddleware, messageHandler.Send)
	router.POST("/conversations/:conversation_id/read", authMiddleware, messageHandler.MarkRead)
	router.POST("/conversations/:conversation_id/messages/:message_id/like", authMiddleware, messageHandler.ToggleLike)
	router.DELETE("/conversations/:conversation_id/messages/:message_id", authMiddleware, messageHandler.Delete)

	router.GET("/notifications", authMiddleware, notificationHandler.List)
	router.POST("/notifications/read-all", authMiddleware, notificationHandler.MarkAllRead)
	router.POST("/notifications/:notification_id/read", authMiddleware, notificationHandler.MarkRead)
	router.DELETE("/notifications/:notification_id", authMiddleware, notificationHandler.Delete)
	router.DELETE("/notifications", authMiddleware, notificationHandler.Clear)

	router.POST("/posts/:post_id/like", authMiddleware, engagementHandler.TogglePostLike)
	router.POST("/comments/:comment_id/like", authMiddleware, engagementHandler.ToggleCommentLike)
	router.POST("/replies/:reply_id/like", authMiddleware, engagementHandler.ToggleReplyLike)
	router.POST("/users/:user_id/follow", authMiddleware, engagementHandler.ToggleFollow)

	router.POST("/posts/:post_id/comments/:comment_id", authMiddleware, engagementHandler.RecordComment)
	router.DELETE("/posts/:post_id/comments/:comment_id", authMiddleware, engagementHandler.RemoveComment)
	router.POST("/posts/:post_id/replies/:reply_id", authMiddleware, engagementHandler.RecordReply)
	router.DELETE("/posts/:post_id/replies/:reply_id", authMiddleware, engagementHandler.RemoveReply)
	router.POST("/posts/:post_id/share", authMiddleware, engagementHandler.RecordShare)
	router.DELETE("/posts/:post_id/share", authMiddleware, engagementHandler.RemoveShare)

	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.Environment == "development")

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
