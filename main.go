package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohitkumar/carepath/agent"
	"github.com/mohitkumar/carepath/analytics"
	"github.com/mohitkumar/carepath/config"
	"github.com/mohitkumar/carepath/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "carepath", "namespace used in storage")
	cmd.Flags().Int("redis-pool-size", 0, "redis connection pool size, 0 for the client default")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "redis", "implementation of underline storage, redis or memory")
	cmd.Flags().String("catalogue-file", "", "yaml file declaring catalogue objects and computed attributes")
	cmd.Flags().String("template-files", "", "comma separated list of template files imported at startup")
	cmd.Flags().Int("resolver-parallelism", 4, "max catalogue object queries run at once")
	cmd.Flags().Duration("query-cache-ttl", 0, "how long catalogue query results are cached, 0 disables caching")
	cmd.Flags().String("audit-log-file", "", "file receiving the audit trail of applied operations")
	cmd.Flags().String("log-level", "info", "log level")
	cmd.Flags().Bool("log-development", false, "human readable development logging")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && len(configFile) > 0 {
			return err
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.RedisConfig.PoolSize = viper.GetInt("redis-pool-size")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.CatalogueFile = viper.GetString("catalogue-file")
	if files := viper.GetString("template-files"); len(files) > 0 {
		c.cfg.TemplateFiles = strings.Split(files, ",")
	}
	c.cfg.ResolverParallelism = viper.GetInt("resolver-parallelism")
	c.cfg.QueryCacheTTL = viper.GetDuration("query-cache-ttl")
	if auditFile := viper.GetString("audit-log-file"); len(auditFile) > 0 {
		c.cfg.AnalyticsConfig = analytics.RecorderConfig{FileName: auditFile, RecorderType: analytics.LOG_FILE_RECORDER}
	} else {
		c.cfg.AnalyticsConfig = analytics.RecorderConfig{RecorderType: analytics.NOOP_RECORDER}
	}
	c.cfg.LogConfig.Level = viper.GetString("log-level")
	c.cfg.LogConfig.Development = viper.GetBool("log-development")
	return logger.Init(c.cfg.LogConfig)
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	defer logger.Sync()
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	if err = agent.Start(); err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "carepath",
		Short:   "care pathway workflow engine",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
