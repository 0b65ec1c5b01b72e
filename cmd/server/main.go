package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"layaway/internal/config"
	"layaway/internal/handler"
	"layaway/internal/infrastructure/cache"
	"layaway/internal/infrastructure/database"
	"layaway/internal/infrastructure/mq"
	"layaway/internal/logging"
	"layaway/internal/metrics"
	"layaway/internal/notify"
	"layaway/internal/service"
	"layaway/pkg/idgen"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		slog.Error("服务异常退出", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// 加载配置
	configPath := os.Getenv("LAYAWAY_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	m := metrics.Registry("layaway")

	// 初始化 ID 生成器
	if err := idgen.Init(1); err != nil {
		return err
	}

	// 初始化 MySQL
	db, err := database.InitMySQL(&cfg.MySQL, logger)
	if err != nil {
		return err
	}

	// 初始化 Redis
	redisClient, err := cache.InitRedis(&cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// 初始化 Kafka，连接不上时通知只打日志，不影响交付
	var dispatcher notify.Dispatcher = notify.NopDispatcher{CountryCode: cfg.Financing.CountryCode, Logger: logger}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.InitKafka(&cfg.Kafka)
		if err != nil {
			logger.Warn("Kafka 初始化失败，交付通知降级为日志", "err", err)
		} else {
			defer closeProducer(producer, logger)
			dispatcher = notify.NewKafkaDispatcher(producer, cfg.Kafka.Topic.DeliveryNotice, cfg.Financing.CountryCode, logger)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configService := service.NewConfigService(db, redisClient, cfg, m, logger)
	if err := configService.Init(ctx); err != nil {
		return fmt.Errorf("初始化分期配置失败: %w", err)
	}

	h := handler.NewHandler(
		service.NewRequestService(db, configService, logger),
		service.NewLifecycleService(db, redisClient, cfg, dispatcher, m, logger),
		service.NewTrustService(db, redisClient, cfg, m, logger),
		configService,
		logger,
	)

	// 设置路由
	router := handler.SetupRouter(h, m, prometheus.DefaultGatherer, logger)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("服务启动", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	logger.Info("正在关闭服务...")
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("服务关闭异常", "err", err)
	}

	logger.Info("服务已关闭")
	return nil
}

func closeProducer(producer sarama.SyncProducer, logger *slog.Logger) {
	if err := producer.Close(); err != nil {
		logger.Warn("关闭 Kafka 生产者失败", "err", err)
	}
}
