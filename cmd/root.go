package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/log"
)

type flags struct {
	config  string
	logPath string
	env     string
}

func Start() {
	f := flags{}
	rootCmd := &cobra.Command{
		Use:   constants.AppStorefront,
		Short: "Storefront cart and checkout service",
	}
	rootCmd.PersistentFlags().
		StringVar(&f.config, "config", constants.AppStorefront, "config file name under ./env")
	rootCmd.PersistentFlags().
		StringVar(&f.logPath, "log-path", "/var/log/storefront.log", "log file path")
	rootCmd.PersistentFlags().
		StringVar(&f.env, "env", os.Getenv("APP_ENV"), "environment, development enables trace logs")

	commands := []*cobra.Command{
		{
			Use:   "serve",
			Short: "Run the storefront http api",
			Run: func(cmd *cobra.Command, args []string) {
				runServe(cmd.Context(), f)
			},
		},
		{
			Use:   "migrate",
			Short: "Apply pending cart storage migrations and exit",
			Run: func(cmd *cobra.Command, args []string) {
				runMigrate(cmd.Context(), f)
			},
		},
	}
	rootCmd.AddCommand(commands...)

	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logger := log.InitLogger(f.logPath, f.env).
			With().
			Str(log.KeyAppName, constants.AppStorefront).
			Str(log.KeyTag, "main Start").
			Logger()
		logger.Info().Str("command", cmd.Name()).Msg("starting command")
		cmd.SetContext(logger.WithContext(cmd.Context()))
	}

	if err := rootCmd.ExecuteContext(c); err != nil {
		logger := log.InitLogger(f.logPath, f.env)
		logger.Fatal().Err(err).Msgf("error when executing command=%s", err.Error())
	}
}
