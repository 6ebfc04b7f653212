package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"retail-order-service/internal/api"
	"retail-order-service/internal/auth"
	"retail-order-service/internal/cache"
	"retail-order-service/internal/config"
	"retail-order-service/internal/consumer"
	"retail-order-service/internal/events"
	"retail-order-service/internal/repository"
	"retail-order-service/internal/service"
	"retail-order-service/migrations"
)

const tokenTTL = 24 * time.Hour

func connectDBEnv(cfg config.DBConfig) (*sql.DB, error) {
	dsn := mysql.NewConfig()
	dsn.User = cfg.User
	dsn.Passwd = cfg.Pass
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	dsn.DBName = cfg.Name
	dsn.ParseTime = true
	dsn.ClientFoundRows = true
	dsn.Loc = time.UTC

	var db *sql.DB
	var err error
	for i := 0; i < cfg.ConnectRetries; i++ {
		db, err = sql.Open("mysql", dsn.FormatDSN())
		if err == nil {
			err = db.Ping()
			if err == nil {
				log.Info().Msgf("Connected to DB %s", cfg.Name)
				return db, nil
			}
			db.Close()
		}
		log.Warn().Msgf("Retry %d: Failed to connect to DB %s (%s:%s): %v", i+1, cfg.Name, cfg.Host, cfg.Port, err)
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to DB %s at %s:%s after retries: %w", cfg.Name, cfg.Host, cfg.Port, err)
}

type repositories struct {
	customers repository.CustomerRepository
	products  repository.ProductRepository
	orders    repository.OrderRepository
	tx        repository.TxManager
	close     func() error
}

func openRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	if cfg.Store == config.StoreMemory {
		store := repository.NewMemoryStore()
		return repositories{
			customers: repository.NewMemoryCustomers(store),
			products:  repository.NewMemoryProducts(store),
			orders:    repository.NewMemoryOrders(store),
			tx:        repository.NewMemoryTx(store),
			close:     func() error { return nil },
		}, nil
	}

	db, err := connectDBEnv(cfg.DB)
	if err != nil {
		return repositories{}, err
	}
	if err := migrations.AutoMigrate(ctx, 3, db); err != nil {
		db.Close()
		return repositories{}, err
	}
	return repositories{
		customers: repository.NewSQLCustomers(db),
		products:  repository.NewSQLProducts(db),
		orders:    repository.NewSQLOrders(db),
		tx:        repository.NewSQLTx(db),
		close:     db.Close,
	}, nil
}

func main() {
	issueToken := flag.String("issue-token", "", "print a signed API token for the given operator name and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	if *issueToken != "" {
		token, err := auth.NewIssuer(cfg.JWTSecret, tokenTTL).Issue(*issueToken)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer repos.close()

	var c cache.Cache = cache.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msgf("Failed to connect to Redis at %s", cfg.Redis.Addr)
		}
		defer rdb.Close()
		c = cache.NewRedisCache(rdb)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaWriter := config.NewKafkaWriter(cfg.Kafka)
		defer kafkaWriter.Close()
		publisher = events.NewKafkaPublisher(kafkaWriter)
	}

	customerService := service.NewCustomerService(repos.customers, repos.tx)
	productService := service.NewProductService(repos.products, repos.orders, repos.tx, c, cfg.Redis.ProductCacheTTL)
	orderService := service.NewOrderService(repos.orders, customerService, productService, repos.tx, publisher, c, cfg.Redis.IdempotencyTTL)

	if len(cfg.Kafka.Brokers) > 0 {
		go consumer.NewConsumer(productService, config.NewKafkaReader(cfg.Kafka)).Run(ctx)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.HTTPErrorHandler

	e.Use(middleware.RequestID())
	e.Use(api.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(api.RateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst))

	var guards []echo.MiddlewareFunc
	if cfg.JWTSecret != "" {
		guards = append(guards, api.JWTGuard(auth.NewIssuer(cfg.JWTSecret, tokenTTL)))
	} else {
		log.Warn().Msg("JWT_SECRET is not set, mutating endpoints are unauthenticated")
	}
	api.Register(e,
		api.NewCustomerHandler(customerService),
		api.NewProductHandler(productService),
		api.NewOrderHandler(orderService),
		guards...,
	)

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}
