package agent

import (
	"context"
	"sync"
	"time"

	"github.com/mohitkumar/carepath/analytics"
	"github.com/mohitkumar/carepath/catalogue"
	"github.com/mohitkumar/carepath/config"
	"github.com/mohitkumar/carepath/logger"
	"github.com/mohitkumar/carepath/metadata"
	"github.com/mohitkumar/carepath/persistence"
	"github.com/mohitkumar/carepath/persistence/memory"
	"github.com/mohitkumar/carepath/persistence/redis"
	"github.com/mohitkumar/carepath/rest"
	"github.com/mohitkumar/carepath/service"
	"go.uber.org/zap"
)

// defaultCatalogue is used when no catalogue file is configured.
const defaultCatalogue = `
objects:
  patient:
    ages:
      age: date_of_birth
  pregnancy: {}
`

type Agent struct {
	Config                   config.Config
	storage                  persistence.Storage
	closeStorage             func() error
	catalogue                *catalogue.Catalogue
	queryCache               *catalogue.QueryCache
	recorder                 analytics.OperationRecorder
	metadataService          metadata.MetadataService
	workflowExecutionService *service.WorkflowExecutionService
	httpServer               *rest.Server
	shutdown                 bool
	shutdownLock             sync.Mutex
}

func New(config config.Config) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		Config:       config,
		closeStorage: func() error { return nil },
	}
	setup := []func() error{
		a.setupStorage,
		a.setupCatalogue,
		a.setupRecorder,
		a.setupMetadataService,
		a.setupWorkflowExecutionService,
		a.importTemplates,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		storage := redis.NewRedisStorage(redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
			PoolSize:  a.Config.RedisConfig.PoolSize,
		})
		a.storage = storage
		a.closeStorage = storage.Close
	default:
		a.storage = memory.NewStorage()
	}
	logger.Info("storage ready", zap.String("impl", string(a.Config.StorageType)))
	return nil
}

func (a *Agent) setupCatalogue() error {
	var defs *catalogue.Definitions
	var err error
	if len(a.Config.CatalogueFile) > 0 {
		defs, err = catalogue.LoadDefinitions(a.Config.CatalogueFile)
	} else {
		defs, err = catalogue.ParseDefinitions([]byte(defaultCatalogue))
	}
	if err != nil {
		return err
	}
	source := persistence.QuerySource(a.storage)
	if a.Config.QueryCacheTTL > 0 {
		a.queryCache = catalogue.NewQueryCache(a.Config.QueryCacheTTL)
		uncached := source
		source = func(object string) catalogue.QueryFunc {
			return a.queryCache.Wrap(object, uncached(object))
		}
	}
	a.catalogue, err = defs.Build(source, time.Now)
	if err != nil {
		return err
	}
	logger.Info("catalogue ready", zap.Strings("objects", a.catalogue.Names()))
	return nil
}

func (a *Agent) setupRecorder() error {
	var err error
	a.recorder, err = analytics.NewRecorder(a.Config.AnalyticsConfig)
	return err
}

func (a *Agent) setupMetadataService() error {
	a.metadataService = metadata.NewMetadataService(a.storage, a.catalogue)
	return nil
}

func (a *Agent) setupWorkflowExecutionService() error {
	resolver := catalogue.NewResolver(a.catalogue, a.Config.ResolverParallelism)
	a.workflowExecutionService = service.NewWorkflowExecutionService(a.metadataService, a.storage, resolver, a.queryCache, a.recorder)
	return nil
}

func (a *Agent) importTemplates() error {
	return metadata.ImportTemplates(context.Background(), a.metadataService, a.Config.TemplateFiles)
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.metadataService, a.workflowExecutionService)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			_ = a.Shutdown()
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		a.httpServer.Stop,
		a.recorder.Close,
		a.closeStorage,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
