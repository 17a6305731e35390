package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/config"
	"github.com/abrahamus/iBeekeeper/internal/dedup"
	"github.com/abrahamus/iBeekeeper/internal/handlers"
	"github.com/abrahamus/iBeekeeper/internal/queue"
	"github.com/abrahamus/iBeekeeper/internal/repository"
	"github.com/abrahamus/iBeekeeper/internal/services"
	xhttp "github.com/abrahamus/iBeekeeper/pkg/http"
	"github.com/abrahamus/iBeekeeper/pkg/logger"
	"github.com/abrahamus/iBeekeeper/pkg/pg"
	"github.com/abrahamus/iBeekeeper/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	q, err := queue.New(redisAdap, queue.Config{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	transactionRepo := repository.NewTransactionRepository(db)
	codeRepo := repository.NewCategoryCodeRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	importRepo := repository.NewImportRepository(db)
	userRepo := repository.NewUserRepository(db)

	checker := dedup.New(transactionRepo, config.Get().ImportSimilarityThreshold)

	// services
	transactionService := services.NewTransactionService(transactionRepo, codeRepo, checker)
	reportService := services.NewReportService(transactionRepo)
	documentService := services.NewDocumentService(documentRepo, transactionRepo,
		config.Get().DocumentRoot, config.Get().DocumentMaxSize)
	importService := services.NewImportService(importRepo, transactionRepo, q)
	userService := services.NewUserService(userRepo)

	// v1 handlers
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	reportHandler := handlers.NewReportHandler(reportService)
	documentHandler := handlers.NewDocumentHandler(documentService)
	importHandler := handlers.NewImportHandler(importService,
		filepath.Join(config.Get().DocumentRoot, "staging"))
	userHandler := handlers.NewUserHandler(userService)
	healthHandler := handlers.NewHealthHandler(db)

	g := s.Router.Group("/api/v1")
	handlers.RegisterTransactionRoutes(g, transactionHandler)
	handlers.RegisterReportRoutes(g, reportHandler)
	handlers.RegisterDocumentRoutes(g, documentHandler)
	handlers.RegisterImportRoutes(g, importHandler)
	handlers.RegisterUserRoutes(g, userHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting http server",
			"addr", config.Get().HttpListenAddr,
			"version", version,
			"commit", commit,
			"build_date", date)
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
