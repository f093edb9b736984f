package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/cvflow/pkg/adapters/file"
	"github.com/aretw0/cvflow/pkg/adapters/redis"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/persistence/middleware"
	"github.com/aretw0/cvflow/pkg/ports"
	"github.com/aretw0/cvflow/pkg/session"
	backend "github.com/redis/go-redis/v9"
)

// backing bundles the pipeline store selected by the flags.
type backing struct {
	store  ports.GraphStore
	locker ports.DistributedLocker
	close  func() error
}

// openStore picks Redis when a URL is given and the file store otherwise,
// then applies the redaction and encryption middleware the options ask for.
func openStore(opts Options) (*backing, error) {
	b, err := openBackend(opts)
	if err != nil {
		return nil, err
	}

	var mws []middleware.Middleware
	if len(opts.Redact) > 0 {
		mw, err := middleware.NewRedactionMiddleware(opts.Redact)
		if err != nil {
			b.close()
			return nil, err
		}
		mws = append(mws, mw)
	}
	if opts.StoreKey != "" {
		key, err := base64.StdEncoding.DecodeString(opts.StoreKey)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("invalid store key: %w", err)
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			b.close()
			return nil, err
		}
		mws = append(mws, mw)
	}
	b.store = middleware.Chain(b.store, mws...)
	return b, nil
}

func openBackend(opts Options) (*backing, error) {
	if opts.RedisURL == "" {
		dir := opts.Dir
		if dir == "" {
			dir = DefaultDir
		}
		return &backing{store: file.New(dir), close: func() error { return nil }}, nil
	}

	redisOpts, err := backend.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid --redis url: %w", err)
	}
	client := backend.NewClient(redisOpts)
	store := redis.NewFromClient(client)
	return &backing{
		store:  store,
		locker: redis.NewLocker(client, redis.DefaultPrefix),
		close:  store.Close,
	}, nil
}

func (b *backing) manager(logger *slog.Logger) *session.Manager {
	opts := []session.Option{session.WithLogger(logger)}
	if b.locker != nil {
		opts = append(opts, session.WithLocker(b.locker))
	}
	return session.NewManager(b.store, opts...)
}

// resolveDocument reads target as a file when one exists at that path and
// looks it up in the store otherwise.
func resolveDocument(ctx context.Context, target string, store ports.GraphStore) (*domain.GraphDocument, error) {
	if target == "" {
		return nil, errors.New("no pipeline given")
	}
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		return file.LoadDocument(target)
	}
	doc, err := store.Load(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", target, err)
	}
	return doc, nil
}
