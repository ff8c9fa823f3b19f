package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"crowdfund/internal/config"
	"crowdfund/internal/infrastructure/database"
	"crowdfund/internal/service"
	"crowdfund/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operator tool for the crowdfund ledger",
	Long: `ledgerctl inspects balances and entries, reconciles cached totals
against the transaction log and marks withdrawals as settled.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to the YAML config")
}

// openServices connects to the configured database. The caller closes db.
func openServices() (*service.Services, *gorm.DB, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Log.Env); err != nil {
		return nil, nil, err
	}

	limits, err := cfg.Business.Limits()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return service.New(db, limits, cfg.Kafka.Topic), db, nil
}

// withServices runs fn against a freshly opened database.
func withServices(fn func(svc *service.Services) error) error {
	svc, db, err := openServices()
	if err != nil {
		return err
	}
	defer database.Close(db)
	defer logger.Sync()
	return fn(svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
