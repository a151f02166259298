package cmd

import (
	"fmt"

	"github.com/languatalk/langua-go/internal/config"
	"github.com/languatalk/langua-go/pkg/authsession"
	"github.com/redis/go-redis/v9"
)

// newManager builds a session manager from the loaded config, choosing the
// credential storage backend the config names.
func newManager(c *config.Config) (*authsession.Manager, error) {
	storage, err := newStorage(c)
	if err != nil {
		return nil, err
	}

	opts := []authsession.Option{}
	if c.GoogleClientID != "" {
		opts = append(opts, authsession.WithGoogleProvider(
			authsession.NewGoogleProvider(c.GoogleClientID, c.GoogleClientSecret),
		))
	}

	return authsession.NewManager(c.APIBaseURL, storage, opts...), nil
}

func newStorage(c *config.Config) (authsession.Storage, error) {
	switch c.StorageBackend {
	case "memory":
		return authsession.NewMemoryStorage(), nil
	case "sqlite":
		path := c.StoragePath
		if path == "" {
			return nil, fmt.Errorf("storage_path is required for the sqlite backend")
		}
		return authsession.NewSQLiteStorage(path)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		return authsession.NewRedisStorage(client), nil
	default:
		path := c.StoragePath
		if path == "" {
			var err error
			path, err = authsession.DefaultStoragePath()
			if err != nil {
				return nil, err
			}
		}
		return authsession.NewFileStorage(path), nil
	}
}
