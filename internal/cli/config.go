package cli

import (
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-sales/internal/app"
)

func (o *RootOptions) loadConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig(o.EnvFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	return cfg, nil
}

func redisOpts(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
