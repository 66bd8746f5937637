package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// rootFlags are the settings shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:     appName,
		Short:   "Adaptive learning and capital allocation core for multi-strategy trading",
		Version: version,
		Long: `stratcore learns from closed trades with a per-regime Thompson sampling
bandit, adjusts strategy confidence, gates weak signals and rebalances
capital between strategies on a fixed trade cadence.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(flags)
		},
	}

	registerRootFlags(cmd.PersistentFlags(), flags)

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newReplayCmd(flags))

	return cmd
}

func registerRootFlags(fs *pflag.FlagSet, flags *rootFlags) {
	fs.StringVarP(&flags.configPath, "config", "c", "", "path to YAML config file")
	fs.StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	fs.BoolVar(&flags.logJSON, "log-json", false, "emit JSON logs instead of console output")
}

func setupLogging(flags *rootFlags) {
	if flags.logJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if flags.logLevel != "" {
		if level, err := zerolog.ParseLevel(flags.logLevel); err == nil {
			zerolog.SetGlobalLevel(level)
		} else {
			log.Warn().Str("level", flags.logLevel).Msg("unknown log level, keeping default")
		}
	}
}
