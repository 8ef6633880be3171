package cli

import (
	"context"
	"fmt"
	"time"

	"form-builder-service/internal/app"
	"form-builder-service/internal/config"
	amqppub "form-builder-service/internal/infra/amqp"
	"form-builder-service/internal/infra/memory"
	mongostore "form-builder-service/internal/infra/mongo"
	"form-builder-service/internal/infra/objectstore"
	pgstore "form-builder-service/internal/infra/postgres"
	redisstore "form-builder-service/internal/infra/redis"
	transport "form-builder-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const uploadsURLPrefix = "/uploads"

// resources tracks the handles opened during startup so they can be released
// in reverse order on shutdown.
type resources struct {
	closers []namedCloser
	checks  map[string]transport.HealthCheck
}

type namedCloser struct {
	name  string
	close func() error
}

func newResources() *resources {
	return &resources{checks: make(map[string]transport.HealthCheck)}
}

func (r *resources) onClose(name string, fn func() error) {
	r.closers = append(r.closers, namedCloser{name: name, close: fn})
}

func (r *resources) close(log *zap.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.close(); err != nil {
			log.Warn("close failed", zap.String("resource", c.name), zap.Error(err))
		}
	}
	r.closers = nil
}

type stores struct {
	forms     app.FormRepository
	responses app.ResponseRepository
	// loader is what the read cache falls through to.
	loader memory.FormLoader
}

func openStores(ctx context.Context, cfg config.Config, res *resources, log *zap.Logger) (stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		forms := memory.NewFormStore()
		return stores{forms: forms, responses: memory.NewResponseStore(), loader: forms}, nil

	case config.DriverPostgres:
		if cfg.Postgres.URL == "" {
			return stores{}, fmt.Errorf("postgres url not configured")
		}
		db := openBun(cfg)
		res.onClose("postgres", db.Close)
		if err := runMigrations(ctx, db, log); err != nil {
			return stores{}, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return stores{}, fmt.Errorf("connect pgx pool: %w", err)
		}
		res.onClose("pgxpool", func() error {
			pool.Close()
			return nil
		})
		res.checks["postgres"] = func(ctx context.Context) error { return db.PingContext(ctx) }
		return stores{
			forms:     pgstore.NewFormStore(db),
			responses: pgstore.NewResponseStore(db),
			loader:    pgstore.NewFormLoader(pool),
		}, nil

	case config.DriverMongo:
		if cfg.Mongo.URI == "" {
			return stores{}, fmt.Errorf("mongo uri not configured")
		}
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return stores{}, err
		}
		res.onClose("mongo", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})
		database := client.Database(cfg.Mongo.Database)
		forms := mongostore.NewFormStore(database)
		responses := mongostore.NewResponseStore(database)
		if err := forms.InitializeIndexes(ctx); err != nil {
			return stores{}, err
		}
		if err := responses.InitializeIndexes(ctx); err != nil {
			return stores{}, err
		}
		res.checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		return stores{forms: forms, responses: responses, loader: forms}, nil
	}
	return stores{}, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// openCache picks the Redis cache and feed registry when Redis is configured,
// the in-process ones otherwise.
func openCache(cfg config.Config, loader memory.FormLoader, res *resources, log *zap.Logger) (app.FormCache, app.FeedRegistry) {
	cacheTTL := config.TTLDuration(cfg.Cache.TTL, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	if cfg.Redis.Addr == "" {
		return memory.NewFormCache(loader, cacheTTL), memory.NewFeedRegistry()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,

		// failures surface to the caller instead of being retried
		MaxRetries: -1,
	})
	res.onClose("redis", client.Close)
	res.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

	feeds := redisstore.NewFeedRegistry(client, log)
	res.onClose("redis feeds", feeds.Close)
	return redisstore.NewFormCache(client, loader, cacheTTL), feeds
}

func openPublisher(cfg config.Config, res *resources, log *zap.Logger) (app.EventPublisher, error) {
	if cfg.RabbitMQ.URI == "" {
		return amqppub.NewDisabledPublisher(log), nil
	}
	publisher, err := amqppub.NewPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange, log)
	if err != nil {
		return nil, err
	}
	res.onClose("rabbitmq", publisher.Close)
	return publisher, nil
}

// openImages returns the upload store and, for local storage, the directory
// to serve under /uploads.
func openImages(ctx context.Context, cfg config.Config) (transport.ImageStore, string, error) {
	if cfg.Storage.Type != "minio" {
		return objectstore.NewLocalStore(cfg.Storage.LocalPath, uploadsURLPrefix), cfg.Storage.LocalPath, nil
	}
	store, err := objectstore.NewMinioStore(ctx, objectstore.MinioConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		return nil, "", err
	}
	return store, "", nil
}
