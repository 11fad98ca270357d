// Command shopctl is a terminal storefront. Each profile is a SQLite file
// holding the same keys a browser keeps in local storage.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"bahri-storefront/internal/backend"
	"bahri-storefront/internal/config"
	"bahri-storefront/internal/db"
	"bahri-storefront/internal/logging"
	"bahri-storefront/internal/migrate"
	"bahri-storefront/internal/repository/kv"
	"bahri-storefront/internal/service/cart"
	"bahri-storefront/internal/service/checkout"
	"bahri-storefront/internal/storefront"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	cfg     config.Config
	profile string
	device  string
	backend string
	policy  string
	asJSON  bool
	verbose bool

	logger *zap.Logger
	sqlDB  *sql.DB
	dev    *storefront.Device
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	cfg, err := config.FromEnv()
	if err != nil {
		cfg = config.Defaults()
	}
	a.cfg = cfg

	root := &cobra.Command{
		Use:          "shopctl",
		Short:        "Browse the fishing shop, fill a cart and place orders from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["device"] == "none" {
				return nil
			}
			return a.open(cmd.Context())
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.profile, "profile", cfg.SQLitePath, "profile database file")
	flags.StringVar(&a.device, "device", "default", "device name inside the profile")
	flags.StringVar(&a.backend, "backend", cfg.BackendBaseURL, "shop backend base URL")
	flags.StringVar(&a.policy, "cart-policy", cfg.CartMergePolicy, "cart policy on sign-in (discard or merge)")
	flags.BoolVar(&a.asJSON, "json", false, "print JSON")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProductsCmd(a),
		newAddCmd(a),
		newCartCmd(a),
		newSetCmd(a),
		newRemoveCmd(a),
		newClearCmd(a),
		newQuoteCmd(a),
		newCheckoutCmd(a),
		newOrdersCmd(a),
		newImportCmd(a),
		newDemoBackendCmd(a),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	logger, err := logging.NewConsole(a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger

	policy, err := cart.PolicyByName(a.policy)
	if err != nil {
		return err
	}
	sqlDB, err := db.OpenSQLite(ctx, a.profile)
	if err != nil {
		return fmt.Errorf("open profile %s: %w", a.profile, err)
	}
	a.sqlDB = sqlDB
	if err := migrate.ApplySQLite(ctx, sqlDB); err != nil {
		return fmt.Errorf("prepare profile %s: %w", a.profile, err)
	}

	dev, err := storefront.Open(ctx, a.device, storefront.Options{
		Backend:    backend.New(a.backend, backend.WithTimeout(a.cfg.BackendTimeout), backend.WithLogger(logger.Named("backend"))),
		Repo:       kv.NewSQLite(sqlDB),
		Calculator: checkout.NewCalculator(a.cfg.ShippingFee),
		Policy:     policy,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	a.dev = dev
	return nil
}

func (a *app) close() {
	if a.dev != nil {
		a.dev.Close()
	}
	if a.sqlDB != nil {
		a.sqlDB.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// print writes v as JSON when --json is set, otherwise calls text.
func (a *app) print(w io.Writer, v interface{}, text func(io.Writer)) error {
	if a.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

// expired tells the user when the shop rejected the stored credential.
func (a *app) expired(w io.Writer) {
	if a.dev != nil && a.dev.Redirect() {
		fmt.Fprintln(w, "Your session expired. Run `shopctl login` to sign in again.")
	}
}
