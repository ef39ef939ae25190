package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"bankmirror/internal/domain/banksync"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/domain/statusprobe"
	"bankmirror/internal/infrastructure/postgres"
	"bankmirror/internal/infrastructure/postgres/listener"
	"bankmirror/internal/infrastructure/saltedge"
	"bankmirror/internal/shared/middleware"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := postgres.New(cfg.Database.ConnectionString())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info().Msg("Schema is up to date")
			return nil
		},
	}
}

func createCustomerCmd() *cobra.Command {
	var params customer.RegisterParams

	cmd := &cobra.Command{
		Use:   "create-customer [identifier]",
		Short: "Register a customer locally and at the aggregator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			params.Identifier = args[0]
			c, err := a.customers.Register(cmd.Context(), params)
			if err != nil {
				return err
			}
			fmt.Printf("Created customer %d (%s), remote id %s\n", c.ID, c.Identifier, c.RemoteID)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Email, "email", "", "Contact email")
	cmd.Flags().StringVar(&params.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&params.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&params.Phone, "phone", "", "Phone number")

	return cmd
}

func syncCmd() *cobra.Command {
	var (
		identifiers []string
		all         bool
		notify      bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror customers' connections, accounts and transactions",
		Example: `  admin sync --customer alice
  admin sync --customer alice,bob
  admin sync --all --timeout 1h
  admin sync --customer alice --notify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(identifiers) == 0 && !all {
				return errors.New("must specify --customer or --all")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if all {
				customers, err := a.customers.List(ctx)
				if err != nil {
					return err
				}
				identifiers = identifiers[:0]
				for _, c := range customers {
					identifiers = append(identifiers, c.Identifier)
				}
				a.logger.Info().Int("customers", len(identifiers)).Msg("Found customers")
			}
			if len(identifiers) == 0 {
				a.logger.Info().Msg("No customers to process")
				return nil
			}

			// Hand the work to a running API server.
			if notify {
				for _, id := range identifiers {
					if err := listener.Notify(ctx, a.db, listener.SyncRequest{Identifier: id, Reason: "admin"}); err != nil {
						return fmt.Errorf("notify %s: %w", id, err)
					}
				}
				a.logger.Info().Int("customers", len(identifiers)).Str("channel", listener.ChannelName).Msg("Sync requested")
				return nil
			}

			failed := 0
			for _, id := range identifiers {
				start := time.Now()
				result, err := a.engine.SyncCustomer(ctx, id)
				if err != nil {
					failed++
					a.logger.Error().Err(err).Str("customer", id).Msg("Sync failed")
					continue
				}
				printResult(id, result, time.Since(start))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d customers failed to sync", failed, len(identifiers))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&identifiers, "customer", nil, "Customer identifier(s), comma-separated")
	cmd.Flags().BoolVar(&all, "all", false, "Sync every local customer")
	cmd.Flags().BoolVar(&notify, "notify", false, "Ask a running API server to sync instead of syncing here")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Timeout for the whole operation")

	return cmd
}

func printResult(identifier string, result *banksync.Result, elapsed time.Duration) {
	fmt.Printf("\n=== Customer %s ===\n", identifier)
	fmt.Printf("  Connections synced:  %d\n", result.ConnectionsSynced)
	fmt.Printf("  Accounts synced:     %d\n", result.AccountsSynced)
	fmt.Printf("  Transactions synced: %d\n", result.TransactionsSynced)
	fmt.Printf("  Elapsed:             %s\n", elapsed.Round(time.Millisecond))

	if len(result.Errors) > 0 {
		fmt.Printf("  Errors:              %d\n", len(result.Errors))
		for i, e := range result.Errors {
			if i >= 5 {
				fmt.Printf("    ... and %d more errors\n", len(result.Errors)-5)
				break
			}
			fmt.Printf("    - %s\n", e)
		}
	}
}

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe aggregator access and estimate the account tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			report := statusprobe.NewProbe(client, log).Check(cmd.Context())
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Println("Aggregator Status")
			fmt.Println(strings.Repeat("=", 40))
			fmt.Printf("  API accessible:     %t\n", report.APIAccessible)
			fmt.Printf("  List providers:     %t\n", report.CanListProviders)
			fmt.Printf("  Create customers:   %t\n", report.CanCreateCustomers)
			fmt.Printf("  Real providers:     %d\n", report.RealProvidersCount)
			fmt.Printf("  Fake providers:     %d\n", report.FakeProvidersCount)
			fmt.Printf("  Countries:          %d\n", report.CountriesCount)
			fmt.Printf("  Estimated status:   %s\n", report.EstimatedStatus)
			for _, e := range []string{report.APIError, report.ProviderError, report.CustomerError} {
				if e != "" {
					fmt.Printf("  Error:              %s\n", e)
				}
			}
			if len(report.Recommendations) > 0 {
				fmt.Println("\nRecommendations:")
				for _, r := range report.Recommendations {
					fmt.Printf("  - %s\n", r)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func providersCmd() *cobra.Command {
	var query saltedge.ProviderQuery

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List aggregator providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			query.CountryCode = strings.ToUpper(query.CountryCode)
			providers, err := client.ListAllProviders(cmd.Context(), query)
			if err != nil {
				return err
			}
			for _, p := range providers {
				fmt.Printf("%-40s %-4s %-8s %s\n", p.Code, p.CountryCode, p.Mode, p.Name)
			}
			fmt.Printf("\n%d providers\n", len(providers))
			return nil
		},
	}

	cmd.Flags().StringVar(&query.CountryCode, "country", "", "ISO country code filter")
	cmd.Flags().StringVar(&query.Mode, "mode", "", "Provider mode filter (oauth, web, api, file)")
	return cmd
}

func hashAPIKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-api-key [key]",
		Short: "Print the bcrypt hash to set as ADMIN_API_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := middleware.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}
