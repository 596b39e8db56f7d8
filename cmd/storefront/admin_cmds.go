package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fjod/go_storefront/internal/apiclient"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/journal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List the catalog as the storefront sees it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		client := catalog.NewClient(apiclient.New(apiclient.Options{
			BaseURL: cfg.API.BaseURL,
			Timeout: cfg.API.Timeout,
			Log:     log,
		}), log)

		products, err := client.ListProducts(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPRICE")
		for _, p := range products {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Price)
		}
		return tw.Flush()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply checkout journal migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		repo, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DSN)
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.RunMigrations(); err != nil {
			return err
		}
		log.Info("journal migrations applied", zap.String("driver", cfg.Journal.Driver))
		return nil
	},
}

var unreconciledLimit int

// unreconciledCmd lists payments that were taken without an order record.
var unreconciledCmd = &cobra.Command{
	Use:   "unreconciled",
	Short: "List payments that have no order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		repo, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DSN)
		if err != nil {
			return err
		}
		defer repo.Close()

		events, err := repo.GetEventsByType(cmd.Context(), journal.EventOrderPersistenceFailedAfterPayment, unreconciledLimit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, e := range events {
			if err := enc.Encode(struct {
				CheckoutID string          `json:"checkout_id"`
				CreatedAt  time.Time       `json:"created_at"`
				Event      json.RawMessage `json:"event"`
			}{e.AggregateID, e.CreatedAt, e.Payload}); err != nil {
				return err
			}
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "no unreconciled payments")
		}
		return nil
	},
}

func init() {
	unreconciledCmd.Flags().IntVar(&unreconciledLimit, "limit", 100, "maximum number of events to print")
}
