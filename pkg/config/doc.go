// Package config provides layered application configuration.
//
// # Overview
//
// Values are resolved in order: built-in defaults, a YAML file (--config or
// <root>/.morp.yaml), MORP_* environment variables, then command-line flags
// applied by pkg/cli.
//
// # Configuration File
//
//	packages_dir: packages
//	base_branch: develop
//	log:
//	  level: info
//	  format: json
//	server:
//	  addr: ":8080"
//	  reload_schedule: "@every 5m"
//	cache:
//	  type: redis
//	  redis_url: redis://localhost:6379/0
//	  ttl: 10m
//
// # Environment
//
//	MORP_ROOT="/src/monorepo"
//	MORP_BASE_BRANCH="main"
//	MORP_LOG_LEVEL="debug"  # debug, info, warn, error
//	MORP_CACHE_TYPE="none"  # memory, redis, none
//	MORP_METRICS_PUSHGATEWAY_URL="http://pushgateway:9091"
//	MORP_OTEL_ENABLED="true"
//	MORP_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.Load(configPath, repoRoot)
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//	store := manifest.NewStore(cfg.StoreConfig(), log)
package config
