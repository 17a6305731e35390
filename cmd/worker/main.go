package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/abrahamus/iBeekeeper/internal/config"
	"github.com/abrahamus/iBeekeeper/internal/dedup"
	"github.com/abrahamus/iBeekeeper/internal/importer"
	"github.com/abrahamus/iBeekeeper/internal/provider"
	"github.com/abrahamus/iBeekeeper/internal/queue"
	"github.com/abrahamus/iBeekeeper/internal/repository"
	"github.com/abrahamus/iBeekeeper/pkg/logger"
	"github.com/abrahamus/iBeekeeper/pkg/pg"
	"github.com/abrahamus/iBeekeeper/pkg/prom"
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

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Provider syncs only run when a feed is configured. CSV imports
	// work either way.
	var providerClient *provider.Client
	if config.Get().ProviderBaseUrl != "" {
		providerClient, err = provider.NewClient(provider.Config{
			BaseURL:  config.Get().ProviderBaseUrl,
			APIToken: config.Get().ProviderAPIToken,
			PageSize: config.Get().ProviderPageSize,
		})
		if err != nil {
			logger.Error("failed to create provider client", "error", err)
			return
		}
	}

	transactionRepo := repository.NewTransactionRepository(db)
	importRepo := repository.NewImportRepository(db)

	checker := dedup.New(transactionRepo, config.Get().ImportSimilarityThreshold)

	imp := importer.New(transactionRepo, importRepo, checker, redisAdap, importer.Config{
		ChunkSize: config.Get().ImportChunkSize,
		LockTTL:   config.Get().ImportLockTTL,
	})

	service := importer.NewService(redisAdap, importer.ServiceConfig{
		Queue: queue.Config{
			Name:              config.Get().QueueName,
			ConsumerGroup:     config.Get().QueueConsumerGroup,
			ConsumerName:      config.Get().QueueConsumerName,
			MaxRetries:        config.Get().QueueMaxRetries,
			VisibilityTimeout: config.Get().QueueVisibilityTimeout,
			PollInterval:      config.Get().QueuePollInterval,
			BatchSize:         config.Get().QueueBatchSize,
			MaxLen:            config.Get().QueueMaxLen,
			EnableDLQ:         config.Get().QueueEnableDLQ,
		},
	})
	service.RegisterProcessor(importer.NewJobProcessor(imp, importRepo,
		importer.NewSourceFactory(providerClient)))

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		logger.Info("starting import worker",
			"version", version,
			"commit", commit,
			"build_date", date)
		err := service.Start()
		if err != nil {
			logger.Error("failed to start import worker", "error", err)
		}
	}()

	<-c
	service.Stop()
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
