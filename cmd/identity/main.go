package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	pgRepo "github.com/nordfeed/identity-service/internal/adapters/db/postgres"
	smtpGateway "github.com/nordfeed/identity-service/internal/adapters/mail/smtp"
	httpTransport "github.com/nordfeed/identity-service/internal/adapters/transport/http"
	"github.com/nordfeed/identity-service/internal/app/identity/hash"
	appsvc "github.com/nordfeed/identity-service/internal/app/identity/service"
	"github.com/nordfeed/identity-service/internal/app/identity/token"
	"github.com/nordfeed/identity-service/internal/infra/config"
	lg "github.com/nordfeed/identity-service/internal/infra/log"
	"github.com/nordfeed/identity-service/internal/infra/migrate"
	"github.com/nordfeed/identity-service/internal/infra/server"
)

func main() {
	zapLog := lg.Must(os.Getenv("LOG_LEVEL"))
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("failed to load config", zap.Error(err))
	}

	db, err := gorm.Open(gormpostgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		zapLog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLog.Fatal("db handle", zap.Error(err))
	}
	defer sqlDB.Close()
	if err := migrate.Up(sqlDB); err != nil {
		zapLog.Fatal("run migrations", zap.Error(err))
	}

	userRepo := pgRepo.NewPostgresUserRepo(db)
	gateway, err := smtpGateway.NewSMTPGateway(cfg)
	if err != nil {
		zapLog.Fatal("failed to init SMTP gateway", zap.Error(err))
	}
	tokenUtil, err := token.NewTokenUtil(cfg)
	if err != nil {
		zapLog.Fatal("failed to init token util", zap.Error(err))
	}
	hasher := hash.NewArgon2Hasher(cfg)

	svc := appsvc.New(userRepo, gateway, tokenUtil, hasher, cfg, validator.New())
	router := httpTransport.NewRouter(svc, cfg, zapLog)

	rootCtx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		return server.StartHTTPServer(ctx, cfg, router, zapLog)
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		zapLog.Info("shutdown signal received")
	case <-ctx.Done():
	}
	cancel()

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
	}
}
