package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/antrikuy/antrikuy-backend/internal/config"
	"github.com/antrikuy/antrikuy-backend/internal/database"
	"github.com/antrikuy/antrikuy-backend/internal/engine"
	"github.com/antrikuy/antrikuy-backend/internal/handler"
	"github.com/antrikuy/antrikuy-backend/internal/logger"
	"github.com/antrikuy/antrikuy-backend/internal/notify"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
	"github.com/antrikuy/antrikuy-backend/internal/router"
	"github.com/antrikuy/antrikuy-backend/internal/scheduler"
	"github.com/antrikuy/antrikuy-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	defer rdb.Close()

	events := repository.NewEventRepo(db)
	entries := repository.NewQueueRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	schools := repository.NewSchoolRepo(db)

	publisher := notify.NewPublisher(cfg.AMQPUrl, log)
	signer := utils.NewTicketSigner(cfg.JWTSecret)
	eng := engine.New(events, entries, publisher, signer)
	eng.Log = log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background workers: the auto-scheduler sweep and the push consumer.
	go scheduler.New(eng, cfg.SweepInterval, log).Run(ctx)
	go notify.StartConsumer(cfg.AMQPUrl, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	router.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authH := handler.NewAuthHandler(cfg, users, tokens)
	eventH := handler.NewEventHandler(events, schools, entries, publisher)
	userH := handler.NewQueueUserHandler(eng, users, entries)
	adminH := handler.NewQueueAdminHandler(eng, events, entries)
	schoolH := handler.NewSchoolHandler(schools)

	router.RegisterAuth(e, authH, cfg, rdb)
	router.RegisterUser(e, userH, eventH, cfg, rdb)
	router.RegisterAdmin(e, eventH, adminH, schoolH, cfg.JWTSecret)

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
