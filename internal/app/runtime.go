// Package app wires a workspace into a ready engine: database, migrations,
// config, logger, content store, oracle client, verifiers, metrics and the
// chat access gate.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"earlyadopters/internal/access"
	"earlyadopters/internal/config"
	"earlyadopters/internal/content"
	"earlyadopters/internal/db"
	"earlyadopters/internal/engine"
	"earlyadopters/internal/logging"
	"earlyadopters/internal/metrics"
	"earlyadopters/internal/migrate"
	"earlyadopters/internal/oracle"
	"earlyadopters/internal/verifier"
)

// Options override pieces of the runtime. Zero values mean "build from config".
type Options struct {
	Config *config.Config
	Store  content.Store
	Oracle oracle.Client
	Logger *log.Logger
}

type Runtime struct {
	DB      *sql.DB
	Config  *config.Config
	Engine  engine.Engine
	Store   content.Store
	Gate    *access.Gate
	Metrics *metrics.Metrics
	Log     *log.Logger
	redis   *redis.Client
}

// Open prepares the workspace and returns a runtime. A missing config file
// falls back to the defaults.
func Open(ctx context.Context, workspace string, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.LoadOptional(workspace)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	logger := opts.Logger
	if logger == nil {
		l, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	applied, err := migrate.Apply(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if len(applied) > 0 {
		logger.WithField("migrations", applied).Info("database migrated")
	}

	store := opts.Store
	if store == nil {
		store, err = newStore(cfg.Content, conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		if node, ok := store.(*content.IPFSStore); ok {
			if err := node.Ping(ctx); err != nil {
				logger.WithError(err).WithField("api", cfg.Content.IPFSAPI).Warn("ipfs node not reachable; content reads will fail until it is")
			}
		}
	}
	oc := opts.Oracle
	if oc == nil && cfg.Oracle.URL != "" {
		oc = oracle.NewHTTPClient(cfg.Oracle.URL, cfg.Oracle.Requester, cfg.Oracle.BondCurrency, seconds(cfg.Oracle.TimeoutSeconds))
	}
	reg, err := verifier.FromConfig(cfg.Verifiers, store, oc)
	if err != nil {
		conn.Close()
		return nil, err
	}

	m := metrics.New()
	eng := engine.New(conn, cfg, reg)
	eng.Metrics = m
	eng.Log = logger

	rdb := access.NewRedisClient(cfg.Access.RedisAddr, cfg.Access.RedisPassword, cfg.Access.RedisDB)
	gate, err := access.NewGate(eng, access.Options{
		CacheSize: cfg.Access.CacheSize,
		Redis:     rdb,
		TTL:       seconds(cfg.Access.CacheTTLSeconds),
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Runtime{
		DB:      conn,
		Config:  cfg,
		Engine:  eng,
		Store:   store,
		Gate:    gate,
		Metrics: m,
		Log:     logger,
		redis:   rdb,
	}, nil
}

func (r *Runtime) Close() error {
	var errs []error
	if r.redis != nil {
		errs = append(errs, r.redis.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// newStore picks the IPFS node when one is configured, else the workspace
// database.
func newStore(cfg config.ContentConfig, conn *sql.DB) (content.Store, error) {
	if cfg.IPFSAPI == "" {
		return content.NewSQLStore(conn), nil
	}
	s, err := content.NewIPFSStore(cfg.IPFSAPI, seconds(cfg.TimeoutSeconds))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
