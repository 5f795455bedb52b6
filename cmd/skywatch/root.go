package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RMahshie/skywatch/internal/config"
)

type app struct {
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "skywatch",
		Short:        "Passive RF drone-emission scanner",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWith(viper.New(), a.configFile)
			if err != nil {
				return err
			}
			setupLogging(cfg.Logging.Level)
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "settings file (JSON or YAML); overrides CONFIG_FILE")

	root.AddCommand(newScanCmd(a))
	root.AddCommand(newSignaturesCmd(a))
	return root
}

// setupLogging configures zerolog for structured console logging
func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
