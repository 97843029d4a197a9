package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"marketplace-orders/internal/client"
	"marketplace-orders/internal/logger"
	"marketplace-orders/internal/middleware"
	"marketplace-orders/internal/model"
	"marketplace-orders/internal/repository"
	"marketplace-orders/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func openDB() (*gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return client.OpenDatabase(cfg.Database.Driver, cfg.DatabaseURL)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the order tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			if err := client.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}

func checkTxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-tx",
		Short: "Report whether the store supports multi-statement transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}

			if err := repository.CheckTransactions(cmd.Context(), db); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "transactions unsupported, orders will use %s mode: %v\n",
					repository.ModeSequential, err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transactions supported, orders will use %s mode\n", repository.ModeAtomic)
			return nil
		},
	}
}

func pruneWebhooksCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune-webhooks",
		Short: "Delete webhook replay records older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := client.OpenDatabase(cfg.Database.Driver, cfg.DatabaseURL)
			if err != nil {
				return err
			}

			webhookCfg := cfg.Webhook
			if olderThan > 0 {
				webhookCfg.Retention = olderThan
			}

			log := logger.New(logger.FromConfig("ordersctl", cfg))
			janitor := service.NewWebhookJanitor(repository.NewWebhookEventRepository(db), webhookCfg, log)

			removed, err := janitor.PruneOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d webhook records\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override WEBHOOK_RETENTION, e.g. 168h")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Issue a bearer token for calling the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}

			token, err := middleware.IssueToken(cfg.JWTSecret, args[0], role, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "customer", "customer, seller or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// catalogFile is the seed format: sellers are upserted by id, products are
// inserted unless the id already exists.
type catalogFile struct {
	Sellers  []model.Seller  `json:"sellers"`
	Products []model.Product `json:"products"`
}

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load sellers and catalog products from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}

			var catalog catalogFile
			if err := json.Unmarshal(raw, &catalog); err != nil {
				return fmt.Errorf("decode %s: %w", file, err)
			}

			db, err := openDB()
			if err != nil {
				return err
			}

			sellers := repository.NewSellerRepository(db)
			for i := range catalog.Sellers {
				// earnings are owned by the commission ledger
				catalog.Sellers[i].TotalEarnings = decimal.Zero
				if err := sellers.Upsert(cmd.Context(), &catalog.Sellers[i]); err != nil {
					return fmt.Errorf("upsert seller %s: %w", catalog.Sellers[i].ID, err)
				}
			}

			if err := repository.NewProductRepository(db).Seed(cmd.Context(), catalog.Products); err != nil {
				return fmt.Errorf("seed products: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d sellers, %d products\n", len(catalog.Sellers), len(catalog.Products))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "catalog.json", `JSON object {"sellers": [...], "products": [...]}`)
	return cmd
}
