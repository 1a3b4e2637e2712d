package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hahanour/sifbot/sifbot/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
}

// Collection is the slice of the driver surface the repositories consume.
// *mongo.Collection satisfies it; tests substitute an in-memory store.
type Collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
	Distinct(ctx context.Context, fieldName string, filter interface{}, opts ...*options.DistinctOptions) ([]interface{}, error)
}

// DB owns the single shared connection to the document store. Repositories
// borrow collections from it; Close releases the connection exactly once.
type DB struct {
	client    *mongo.Client
	db        *mongo.Database
	closeOnce sync.Once
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	uri := fmt.Sprintf("mongodb://%s:%d", cfg.Host, cfg.Port)

	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(config.ConnectTimeout).
		SetServerSelectionTimeout(config.NetworkDialTimeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	// mongo.Connect does not dial eagerly; verify reachability with a
	// retried ping before handing the connection out.
	var pingErr error
	for i := 0; i < config.MaxConnectRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
		pingErr = client.Ping(pingCtx, nil)
		cancel()
		if pingErr == nil {
			break
		}
		time.Sleep(config.ConnectRetryInterval)
	}
	if pingErr != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("store unreachable after %d attempts: %w", config.MaxConnectRetries, pingErr)
	}

	slog.Info("Connected to document store",
		slog.String("type", "db"),
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("database", cfg.Database))

	return &DB{
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

// Collection returns a handle to a named collection in the configured database.
func (db *DB) Collection(name string) Collection {
	return db.db.Collection(name)
}

// Ping verifies the store connection is still working.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("store ping failed: %w", err)
	}
	return nil
}

// Close disconnects from the store. Safe to call more than once; only the
// first call releases network resources.
func (db *DB) Close(ctx context.Context) error {
	var err error
	db.closeOnce.Do(func() {
		err = db.client.Disconnect(ctx)
	})
	return err
}
