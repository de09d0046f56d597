package cache

import (
	"context"
	"fmt"
	"time"
)

// Store is the persistent tier, keyed like the memory tier and surviving restarts.
type Store interface {
	// GetAudio returns the stored payload, or false when the key is absent.
	GetAudio(ctx context.Context, key string) ([]byte, bool, error)
	SaveAudio(ctx context.Context, key string, data []byte) error
}

// Stats describes what a store currently holds.
type Stats struct {
	Backend  string
	Location string
	Entries  int64
	Bytes    int64
}

// Inspector is implemented by stores that can report and drop their contents.
type Inspector interface {
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context) error
}

type StoreType string

const (
	StoreTypeDisk  StoreType = "disk"
	StoreTypeRedis StoreType = "redis"
	StoreTypeNone  StoreType = "none"
)

// StoreConfig selects and configures a persistent store.
type StoreConfig struct {
	Type             string
	Path             string
	CompressionLevel int
	Redis            RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewStore builds the persistent store named by config.Type.
func NewStore(config StoreConfig) (Store, error) {
	switch StoreType(config.Type) {
	case StoreTypeDisk, "":
		return NewDiskStore(config.Path, config.CompressionLevel)
	case StoreTypeRedis:
		return NewRedisStore(config.Redis)
	case StoreTypeNone:
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}

// NopStore never holds anything.
type NopStore struct{}

func (NopStore) GetAudio(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NopStore) SaveAudio(context.Context, string, []byte) error        { return nil }
