package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	goredis "github.com/redis/go-redis/v9"

	"zeechat/internal/auth"
	"zeechat/internal/chat"
	"zeechat/internal/config"
	"zeechat/internal/handlers/apiserver"
	"zeechat/internal/handlers/chatserver"
	"zeechat/internal/kafka"
	"zeechat/internal/middleware"
	zeeredis "zeechat/internal/redis"
	"zeechat/internal/services"
	"zeechat/internal/storage"
)

func main() {
	log.Println("启动 ZeeChat 服务器...")

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// --- 数据库 ---
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// --- Redis (令牌黑名单 + 在线镜像) ---
	var tokenBlacklist auth.TokenBlacklist
	var presenceMirror *zeeredis.PresenceMirror
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		// 无 Redis 时降级运行：登出不吊销令牌，在线状态只写数据库
		log.Printf("连接 Redis 失败，令牌黑名单与在线镜像已禁用: %v", err)
		redisClient = nil
	} else {
		tokenBlacklist = zeeredis.NewRedisTokenBlacklist(redisClient)
		heartbeatInterval := time.Duration(cfg.WebSocket.HeartbeatIntervalSeconds) * time.Second
		presenceMirror = zeeredis.NewPresenceMirror(redisClient, 3*heartbeatInterval)
	}

	// --- 存储层 ---
	userRepo := storage.NewGormUserRepository(db)
	followRepo := storage.NewGormFollowRepository(db)
	conversationRepo := storage.NewGormConversationRepository(db)
	messageRepo := storage.NewGormMessageRepository(db)
	txManager := storage.NewGormTxManager(db)

	// --- 连接层 ---
	presenceService := services.NewPresenceService(userRepo, presenceMirror)
	hub := chat.NewHub(presenceService)
	router := chat.NewRouter(hub)

	heartbeat := chat.NewHeartbeat(hub, time.Duration(cfg.WebSocket.HeartbeatIntervalSeconds)*time.Second)
	go heartbeat.Run()
	defer heartbeat.Stop()

	// --- 可选的跨实例事件中继 ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var deliverer services.LiveDeliverer = hub
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewConfluentKafkaProducer(cfg.Kafka)
		if err != nil {
			log.Fatalf("创建 Kafka 生产者失败: %v", err)
		}
		defer producer.Close()
		var checker kafka.PresenceChecker
		if presenceMirror != nil {
			checker = presenceMirror
		}
		deliverer = kafka.NewRelayDeliverer(hub, producer, checker, cfg.Kafka)

		consumer, err := kafka.NewConfluentKafkaConsumer(cfg.Kafka)
		if err != nil {
			log.Fatalf("创建 Kafka 消费者失败: %v", err)
		}
		defer consumer.Close()
		go func() {
			err := consumer.Consume(ctx, []string{cfg.Kafka.OutgoingEventsTopic}, cfg.Kafka.ConsumerGroup, kafka.NewRelayHandler(hub))
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Kafka 中继消费循环退出: %v", err)
			}
		}()
	}

	// --- 服务层 ---
	authService := services.NewAuthService(userRepo, tokenBlacklist, cfg.Auth)
	userService := services.NewUserService(userRepo, followRepo)
	messageService := services.NewMessageService(messageRepo, conversationRepo, userRepo, followRepo, txManager, deliverer)
	reactionService := services.NewReactionService(messageRepo, deliverer)
	deletionService := services.NewDeletionService(messageRepo, deliverer)

	// --- 接口层 ---
	authHandler := apiserver.NewAuthHandler(authService)
	userHandler := apiserver.NewUserHandler(userService)
	messageHandler := apiserver.NewMessageHandler(messageService, reactionService, deletionService)
	wsHandler := chatserver.NewWebSocketHandler(hub, router, tokenBlacklist, cfg)

	muxRouter := mux.NewRouter()
	muxRouter.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	muxRouter.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	muxRouter.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)

	api := muxRouter.PathPrefix("/api/v1").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return middleware.AuthMiddleware(next, cfg.Auth, tokenBlacklist)
	})
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	api.HandleFunc("/messages/send/{userId:[0-9]+}", messageHandler.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/react/{messageId:[0-9]+}", messageHandler.ReactToMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/clear/{userId:[0-9]+}", messageHandler.ClearChat).Methods(http.MethodDelete)
	api.HandleFunc("/messages/{messageId:[0-9]+}", messageHandler.DeleteMessage).Methods(http.MethodDelete)
	api.HandleFunc("/messages/{userId:[0-9]+}", messageHandler.GetMessages).Methods(http.MethodGet)
	api.HandleFunc("/conversations", messageHandler.ListConversations).Methods(http.MethodGet)
	api.HandleFunc("/users", userHandler.ListUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/follow/{userId:[0-9]+}", userHandler.Follow).Methods(http.MethodPost)
	api.HandleFunc("/users/follow/{userId:[0-9]+}", userHandler.Unfollow).Methods(http.MethodDelete)

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(cfg.Server.CORS.AllowedOrigins),
		gorillaHandlers.AllowedMethods(cfg.Server.CORS.AllowedMethods),
		gorillaHandlers.AllowedHeaders(cfg.Server.CORS.AllowedHeaders),
		gorillaHandlers.ExposedHeaders(cfg.Server.CORS.ExposedHeaders),
		gorillaHandlers.AllowCredentials(),
		gorillaHandlers.MaxAge(cfg.Server.CORS.MaxAge),
	)(muxRouter)

	server := &http.Server{
		Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:        corsHandler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("服务器监听于 %s (WebSocket 路径 %s)", server.Addr, cfg.Server.WebSocketPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// --- 优雅关闭 ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到退出信号，正在关闭服务器...")

	cancel()
	heartbeat.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务器关闭失败: %v", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	log.Println("服务器已退出。")
}
