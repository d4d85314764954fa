package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"harvestdash/internal/backend"
	"harvestdash/internal/config"
	"harvestdash/internal/log"
)

var (
	cfgFile string
	envFile string

	// Set with -ldflags at build time.
	version = "dev"
	commit  = "none"

	appCfg    *config.Config
	appLogger *log.Logger

	rootCmd = &cobra.Command{
		Use:   "harvestdash",
		Short: "Agricultural business dashboard fed from spreadsheets",
		Long: `harvestdash reads a spreadsheet workbook (Google Sheets, a published CSV
export, a local .xlsx file or the built-in demo data), classifies every tab,
computes production, quality and financial metrics and serves the result.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("source", "", "data source override ("+strings.Join(backend.GetSourceTypeStrings(), ", ")+")")

	_ = viper.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("LOG_FORMAT", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("DATA_SOURCE", rootCmd.PersistentFlags().Lookup("source"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads the dotenv file, then the config file and environment
// through viper. Variables already set in the environment win over the
// dotenv file.
func initConfig(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := config.LoadFrom(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	appCfg = cfg

	appLogger = log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    cmd.ErrOrStderr(),
	})
	log.SetDefault(appLogger)
	return nil
}
