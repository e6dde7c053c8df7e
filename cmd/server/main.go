package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/rl1809/auction/internal/adapter/clock"
	"github.com/rl1809/auction/internal/adapter/handler"
	"github.com/rl1809/auction/internal/adapter/publisher"
	"github.com/rl1809/auction/internal/adapter/scheduler"
	"github.com/rl1809/auction/internal/adapter/storage"
	"github.com/rl1809/auction/internal/config"
	"github.com/rl1809/auction/internal/core/service"
	"github.com/rl1809/auction/internal/port"
	"github.com/rl1809/auction/pkg/jwt"
	"github.com/rl1809/auction/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.App.Environment, cfg.App.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open auction store")
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("auction store ready")

	// Initialize event publisher
	var events port.EventPublisher = publisher.Noop{}
	var nats *publisher.NATSPublisher
	if cfg.NatsURL != "" {
		nats, err = publisher.Connect(cfg.NatsURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect nats")
		}
		events = nats
		log.Info().Str("url", cfg.NatsURL).Msg("connected to nats")
	}

	// Initialize services
	auctions := service.NewAuctionService(repo, clock.System{}, events, cfg.Auction.BidMaxRetries)
	queries := service.NewQueryService(repo, clock.System{}, auctions)
	tokens := jwt.NewManager(cfg.JWT.Secret)

	// Start expiry sweeper
	sweeper := scheduler.NewSweeper(auctions, cfg.Auction.SweepTimeout)
	if err := sweeper.Start(cfg.Auction.SweepSchedule); err != nil {
		log.Fatal().Err(err).Msg("failed to start sweeper")
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.IdentityInterceptor(tokens)))
	handler.RegisterAuctionServiceServer(grpcServer, handler.NewGRPCHandler(auctions, queries))

	lis, err := net.Listen("tcp", cfg.App.GRPCAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.App.GRPCAddr).Msg("failed to listen")
	}

	go func() {
		log.Info().Str("addr", cfg.App.GRPCAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC server error")
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           handler.NewHTTPHandler(auctions, queries, tokens).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.App.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer shutdownCancel()

	httpServer.Shutdown(shutdownCtx)
	log.Info().Msg("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info().Msg("gRPC server stopped")

	sweeper.Stop(shutdownCtx)

	if nats != nil {
		nats.Close()
	}
	closeStore()
	log.Info().Msg("connections closed")
}

func openStore(ctx context.Context, cfg *config.Config) (port.AuctionRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return storage.NewRedisAdapter(rdb), func() { rdb.Close() }, nil

	case config.DriverMySQL:
		db, err := sql.Open("mysql", cfg.Store.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.InitSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return adapter, func() { db.Close() }, nil

	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		adapter := storage.NewPostgresAdapter(pool)
		if err := adapter.InitSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return adapter, pool.Close, nil
	}

	return storage.NewMemoryAdapter(), func() {}, nil
}
