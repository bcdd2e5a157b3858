package config

import (
	"fmt"
	"time"

	"github.com/mohitkumar/carepath/analytics"
	"github.com/mohitkumar/carepath/logger"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	RedisConfig         RedisStorageConfig
	HttpPort            int
	StorageType         StorageType
	CatalogueFile       string
	TemplateFiles       []string
	ResolverParallelism int
	QueryCacheTTL       time.Duration
	AnalyticsConfig     analytics.RecorderConfig
	LogConfig           logger.Config
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
	PoolSize  int
}

func (c Config) Validate() error {
	switch c.StorageType {
	case STORAGE_TYPE_REDIS:
		if len(c.RedisConfig.Addrs) == 0 {
			return fmt.Errorf("redis storage needs at least one address")
		}
	case STORAGE_TYPE_INMEM:
	default:
		return fmt.Errorf("invalid storage type %q", c.StorageType)
	}
	if c.HttpPort < 0 || c.HttpPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HttpPort)
	}
	if c.QueryCacheTTL < 0 {
		return fmt.Errorf("query cache ttl can not be negative")
	}
	return nil
}
