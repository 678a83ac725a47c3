package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jump/config"
	"jump/observability"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)
	config.BindEnv(v)

	var cfgFile string

	root := &cobra.Command{
		Use:   "jump",
		Short: "Ephemeral key-value sharing service",
		Long: `jump guarda conteúdo por um tempo limitado e devolve um id opaco
para leitura e remoção até a expiração.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile == "" {
				return nil
			}
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if errors.As(err, &notFound) {
					return nil
				}
				return fmt.Errorf("read config %s: %w", cfgFile, err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("redis-addr", "", "redis address (host:port)")
	_ = v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("redis.addr", root.PersistentFlags().Lookup("redis-addr"))

	root.AddCommand(
		newServeCmd(v),
		newStatsCmd(v),
		newVersionCmd(),
	)
	return root
}

// loadConfig decodifica a configuração e monta o logger correspondente.
func loadConfig(v *viper.Viper) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}
