package app

import (
	"fmt"
	"strings"

	"arena/internal/config"
	"arena/internal/store"
	"arena/internal/store/gormstore"
	"arena/internal/store/redisstore"
)

// OpenBackend 按 persistence.driver 打开快照后端。
func OpenBackend(pc config.PersistenceConfig) (store.Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(pc.Driver))
	switch driver {
	case "", "file":
		fb, err := store.NewFileBackend(pc.Path)
		if err != nil {
			return nil, err
		}
		return fb, nil
	case "sqlite", "postgres", "mysql":
		gs, err := gormstore.NewGormStore(gormstore.Options{Driver: driver, Path: pc.Path, DSN: pc.DSN})
		if err != nil {
			return nil, fmt.Errorf("open %s snapshot store: %w", driver, err)
		}
		return gs, nil
	case "redis":
		rs, err := redisstore.New(redisstore.Options{
			Addr:     pc.RedisAddr,
			Password: pc.RedisPassword,
			DB:       pc.RedisDB,
			Key:      pc.RedisKey,
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	case "none":
		return store.Discard{}, nil
	default:
		return nil, fmt.Errorf("unsupported persistence driver: %s", pc.Driver)
	}
}
