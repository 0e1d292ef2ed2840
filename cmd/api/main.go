package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/medivisit/telehealth-api/internal/config"
	"github.com/medivisit/telehealth-api/internal/email"
	appointmentHandler "github.com/medivisit/telehealth-api/internal/handler/appointment"
	authHandler "github.com/medivisit/telehealth-api/internal/handler/auth"
	chatHandler "github.com/medivisit/telehealth-api/internal/handler/chat"
	healthHandler "github.com/medivisit/telehealth-api/internal/handler/health"
	"github.com/medivisit/telehealth-api/internal/middleware"
	"github.com/medivisit/telehealth-api/internal/repository/postgres"
	"github.com/medivisit/telehealth-api/internal/router"
	appointmentService "github.com/medivisit/telehealth-api/internal/service/appointment"
	authService "github.com/medivisit/telehealth-api/internal/service/auth"
	chatService "github.com/medivisit/telehealth-api/internal/service/chat"
	conversationService "github.com/medivisit/telehealth-api/internal/service/conversation"
	notificationService "github.com/medivisit/telehealth-api/internal/service/notification"
	"github.com/medivisit/telehealth-api/internal/worker"
	"github.com/medivisit/telehealth-api/internal/ws"
	"github.com/medivisit/telehealth-api/pkg/auth"
	"github.com/medivisit/telehealth-api/pkg/logger"
	redisBroker "github.com/medivisit/telehealth-api/pkg/messaging/redis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:  level,
		Pretty: cfg.Log.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redisBroker.NewRedisBroker(cfg.Redis, log.Zerolog())
	if err != nil {
		log.Fatal(err, "failed to connect to redis")
	}
	defer broker.Close()

	userRepo := postgres.NewUserRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	conversationRepo := postgres.NewConversationRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	jwtSvc := auth.NewJWTService(cfg.JWT)

	var emailSvc email.Service = email.NoopService{}
	if cfg.SMTP.Enabled {
		emailSvc = email.NewService(cfg.SMTP)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(log, prometheus.DefaultRegisterer)
	go hub.Run(ctx)

	convSvc := conversationService.NewService(conversationRepo)
	notifSvc := notificationService.NewService(userRepo, emailSvc, log)
	apptSvc := appointmentService.NewService(appointmentRepo, convSvc, notifSvc, log)
	chatSvc := chatService.NewService(messageRepo, convSvc, broker, hub.InstanceID(), log)
	authSvc := authService.NewService(userRepo, jwtSvc)

	wsRouter := ws.NewRouter(hub, chatSvc, authSvc, log)

	go func() {
		if err := ws.RunRelay(ctx, broker, hub, log); err != nil && !errors.Is(err, context.Canceled) {
			log.Error(err, "message relay stopped")
		}
	}()

	expiry := worker.NewExpiryWorker(appointmentRepo, time.Hour, log)
	go expiry.Start(ctx)

	authMw := middleware.NewAuthMiddleware(authSvc)

	r := router.NewRouter(
		router.Config{
			RateLimit: rate.Limit(cfg.Server.RateLimit),
			RateBurst: cfg.Server.RateBurst,
			CORS:      middleware.DefaultCORSConfig(),
		},
		log.Zerolog(),
		authMw,
		authHandler.NewHandler(authSvc),
		appointmentHandler.NewHandler(apptSvc),
		chatHandler.NewHandler(chatSvc),
		healthHandler.NewHandler(db),
		wsRouter,
		prometheus.DefaultRegisterer,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithFields(map[string]interface{}{"port": cfg.Server.Port}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "graceful shutdown failed")
	}
}
