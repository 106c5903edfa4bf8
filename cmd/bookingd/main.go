package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/harborview/booking/internal/gateway/stripegateway"
	"github.com/harborview/booking/internal/httpserver"
	"github.com/harborview/booking/internal/metrics"
	"github.com/harborview/booking/internal/notify/mailer"
	"github.com/harborview/booking/internal/queue"
	"github.com/harborview/booking/internal/redislock"
	"github.com/harborview/booking/internal/store/gormstore"
	"github.com/harborview/booking/pkg/booking"
)

const (
	flagDatabaseURL    = "database-url"
	flagListenAddr     = "listen-addr"
	flagStripeAPIKey   = "stripe-api-key"
	flagCurrency       = "currency"
	flagAllowedOrigins = "allowed-origins"
	flagRedisAddr      = "redis-addr"
	flagAMQPURL        = "amqp-url"

	configKeyDatabaseURL    = "database_url"
	configKeyListenAddr     = "listen_addr"
	configKeyStripeAPIKey   = "stripe_api_key"
	configKeyCurrency       = "currency"
	configKeyAllowedOrigins = "allowed_origins"
	configKeyRedisAddr      = "redis_addr"
	configKeyRedisPassword  = "redis_password"
	configKeyAMQPURL        = "amqp_url"
	configKeySMTPHost       = "smtp_host"
	configKeySMTPPort       = "smtp_port"
	configKeySMTPUsername   = "smtp_username"
	configKeySMTPPassword   = "smtp_password"
	configKeySMTPFromName   = "smtp_from_name"

	defaultDatabaseURL = "sqlite:///tmp/booking.db"
	defaultListenAddr  = ":8080"
	defaultCurrency    = "usd"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	StripeAPIKey   string
	Currency       string
	AllowedOrigins []string
	RedisAddr      string
	RedisPassword  string
	AMQPURL        string
	SMTP           mailer.Config
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bookingd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "bookingd",
		Short:         "Hotel reservation and payment orchestration server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or sqlite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagStripeAPIKey, "", "Stripe secret key")
	cmd.Flags().String(flagCurrency, defaultCurrency, "charge currency (lowercase ISO code)")
	cmd.Flags().StringSlice(flagAllowedOrigins, nil, "CORS allowed origins")
	cmd.Flags().String(flagRedisAddr, "", "Redis address for distributed locks (optional)")
	cmd.Flags().String(flagAMQPURL, "", "RabbitMQ URL for event publishing (optional)")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	_ = godotenv.Load()

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	envBindings := map[string]string{
		configKeyDatabaseURL:    "DATABASE_URL",
		configKeyListenAddr:     "LISTEN_ADDR",
		configKeyStripeAPIKey:   "STRIPE_API_KEY",
		configKeyCurrency:       "CURRENCY",
		configKeyAllowedOrigins: "ALLOWED_ORIGINS",
		configKeyRedisAddr:      "REDIS_ADDR",
		configKeyRedisPassword:  "REDIS_PASSWORD",
		configKeyAMQPURL:        "AMQP_URL",
		configKeySMTPHost:       "SMTP_HOST",
		configKeySMTPPort:       "SMTP_PORT",
		configKeySMTPUsername:   "SMTP_USERNAME",
		configKeySMTPPassword:   "SMTP_PASSWORD",
		configKeySMTPFromName:   "SMTP_FROM_NAME",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	flagBindings := map[string]string{
		configKeyDatabaseURL:    flagDatabaseURL,
		configKeyListenAddr:     flagListenAddr,
		configKeyStripeAPIKey:   flagStripeAPIKey,
		configKeyCurrency:       flagCurrency,
		configKeyAllowedOrigins: flagAllowedOrigins,
		configKeyRedisAddr:      flagRedisAddr,
		configKeyAMQPURL:        flagAMQPURL,
	}
	for key, flag := range flagBindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.StripeAPIKey = viper.GetString(configKeyStripeAPIKey)
	cfg.Currency = viper.GetString(configKeyCurrency)
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	cfg.AllowedOrigins = viper.GetStringSlice(configKeyAllowedOrigins)
	cfg.RedisAddr = viper.GetString(configKeyRedisAddr)
	cfg.RedisPassword = viper.GetString(configKeyRedisPassword)
	cfg.AMQPURL = viper.GetString(configKeyAMQPURL)
	cfg.SMTP = mailer.Config{
		Host:     viper.GetString(configKeySMTPHost),
		Port:     viper.GetString(configKeySMTPPort),
		Username: viper.GetString(configKeySMTPUsername),
		Password: viper.GetString(configKeySMTPPassword),
		FromName: viper.GetString(configKeySMTPFromName),
	}

	if cfg.StripeAPIKey == "" {
		return fmt.Errorf("stripe api key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	store := gormstore.New(gormDB)
	gateway, err := stripegateway.New(cfg.StripeAPIKey)
	if err != nil {
		return fmt.Errorf("payment gateway init: %w", err)
	}

	mailSink := mailer.New(cfg.SMTP, logger)

	options := []booking.ServiceOption{
		booking.WithCurrency(cfg.Currency),
		booking.WithOperationLogger(operationLoggers{
			newZapOperationLogger(logger),
			metrics.NewRecorder(),
		}),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		publisher, err := queue.NewPublisher(cfg.AMQPURL, logger)
		if err != nil {
			return fmt.Errorf("event publisher init: %w", err)
		}
		defer func() { _ = publisher.Close() }()
		options = append(options, booking.WithNotificationSink(publisher))

		consumer := queue.NewConsumer(cfg.AMQPURL, mailSink, logger)
		group.Go(func() error {
			err := consumer.Run(groupCtx)
			if err != nil && groupCtx.Err() != nil {
				return nil
			}
			return err
		})
	} else {
		options = append(options, booking.WithNotificationSink(mailSink))
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
		options = append(options, booking.WithLocker(redislock.New(redisClient)))
	}

	clock := func() int64 { return time.Now().UTC().Unix() }
	service, err := booking.NewService(store, store, store, gateway, store, clock, options...)
	if err != nil {
		return fmt.Errorf("booking service init: %w", err)
	}

	server := httpserver.New(httpserver.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
	}, service, logger, promhttp.Handler())

	group.Go(func() error {
		return server.Run(groupCtx)
	})

	return group.Wait()
}

// zapOperationLogger bridges service operation callbacks onto zap.
type zapOperationLogger struct {
	logger *zap.Logger
}

func newZapOperationLogger(logger *zap.Logger) zapOperationLogger {
	return zapOperationLogger{logger: logger}
}

func (adapter zapOperationLogger) LogOperation(_ context.Context, entry booking.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("reservation_id", entry.ReservationID),
		zap.String("room_id", entry.RoomID),
		zap.String("user_id", entry.UserID),
		zap.Int64("amount_cents", entry.Amount.Int64()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		adapter.logger.Warn("booking operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("booking operation", fields...)
}

// operationLoggers fans one callback out to several loggers.
type operationLoggers []booking.OperationLogger

func (loggers operationLoggers) LogOperation(ctx context.Context, entry booking.OperationLog) {
	for _, logger := range loggers {
		logger.LogOperation(ctx, entry)
	}
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormCfg := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormCfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "booking.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := gormstore.Migrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
