package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/adapter/handler"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/adapter/storage"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/catalog"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/config"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/service"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/observability"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/port"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "restaurant",
		Usage: "restaurant catalog and stock service",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP and gRPC servers",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "seed", Usage: "populate an empty catalog with the default menu"},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply MySQL schema migrations",
				Action: migrate,
			},
			{
				Name:  "seed",
				Usage: "populate an empty catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "YAML seed file, defaults to the built-in menu"},
				},
				Action: seed,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("exited with error")
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := observability.SetupLogger(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName); err != nil {
		return nil, pkgerrors.Wrap(err, "setup logger")
	}
	return cfg, nil
}

type stores struct {
	items       port.ItemRepository
	idempotency port.IdempotencyRepository
	closers     []func() error
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("close connection")
		}
	}
}

// openStores picks the item store from cfg.Store. The MySQL store keeps
// idempotency keys in Redis; the memory store keeps them in process.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}

	switch cfg.Store {
	case config.StoreMemory:
		s.items = storage.NewMemoryAdapter()
		s.idempotency = storage.NewMemoryIdempotency(cfg.IdempotencyKeyTTL)
		return s, nil

	case config.StoreMySQL:
		db, err := openMySQL(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.items = storage.NewMySQLAdapter(db)

	case config.StoreRedis:
	}

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		s.close()
		return nil, err
	}
	s.closers = append(s.closers, rdb.Close)
	if s.items == nil {
		s.items = storage.NewRedisAdapter(rdb)
	}
	s.idempotency = storage.NewRedisIdempotency(rdb, cfg.IdempotencyKeyTTL)
	return s, nil
}

func openMySQL(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open mysql")
	}
	db.SetMaxOpenConns(cfg.MySQLMaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQLMaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQLConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "ping mysql")
	}
	log.Info().Msg("connected to mysql")
	return db, nil
}

func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, pkgerrors.Wrap(err, "ping redis")
	}
	log.Info().Str("addr", cfg.RedisAddress).Msg("connected to redis")
	return rdb, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tp, err := observability.InitTracerProvider(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		return pkgerrors.Wrap(err, "init tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		observability.ShutdownTracerProvider(ctx, tp)
	}()

	st, err := openStores(c.Context, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	items := service.NewItemService(st.items)
	engine := service.NewStockEngine(st.items)

	if c.Bool("seed") {
		if _, err := catalog.Apply(c.Context, items, catalog.DefaultSeed()); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           handler.NewHTTPHandler(items, engine, st.idempotency).Router(cfg.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	handler.RegisterStockServiceServer(grpcServer, handler.NewGRPCHandler(engine))

	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return pkgerrors.Wrapf(err, "listen on %s", cfg.GRPCAddress)
	}

	g, ctx := errgroup.WithContext(c.Context)

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddress).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return pkgerrors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.GRPCAddress).Msg("gRPC server listening")
		return pkgerrors.Wrap(grpcServer.Serve(lis), "grpc server")
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		log.Info().Msg("servers stopped")
		return err
	})

	return g.Wait()
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openMySQL(c.Context, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return storage.MigrateUp(db.DB)
}

func seed(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	menu := catalog.DefaultSeed()
	if path := c.String("file"); path != "" {
		if menu, err = catalog.LoadSeedFile(path); err != nil {
			return err
		}
	}

	st, err := openStores(c.Context, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	_, err = catalog.Apply(c.Context, service.NewItemService(st.items), menu)
	return err
}
