package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"bahri-storefront/internal/backend/backendtest"
	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/importer"
	"bahri-storefront/internal/seed"
	"bahri-storefront/internal/service/cart"
	"bahri-storefront/internal/service/checkout"
	"github.com/spf13/cobra"
)

// fail prints the login hint when err came with an expired session.
func (a *app) fail(cmd *cobra.Command, err error) error {
	a.expired(cmd.ErrOrStderr())
	return err
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password, google string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password or a Google credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				user domain.User
				err  error
			)
			if google != "" {
				user, err = a.dev.Session.LoginWithGoogle(cmd.Context(), google)
			} else {
				if password == "" {
					password = os.Getenv("SHOPCTL_PASSWORD")
				}
				user, err = a.dev.Session.Login(cmd.Context(), email, password)
			}
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), user, func(w io.Writer) {
				fmt.Fprintf(w, "Signed in as %s (%s), %s loyalty points\n", user.FullName(), user.Email, user.LoyaltyPoints.StringFixed(2))
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or SHOPCTL_PASSWORD)")
	cmd.Flags().StringVar(&google, "google", "", "Google identity credential")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.dev.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := a.dev.Session.RefreshIdentity(cmd.Context())
			a.expired(cmd.ErrOrStderr())
			return a.print(cmd.OutOrStdout(), id, func(w io.Writer) {
				if id.IsGuest() {
					fmt.Fprintln(w, "Browsing as guest.")
					return
				}
				u := id.User
				fmt.Fprintf(w, "%s <%s>\n", u.FullName(), u.Email)
				fmt.Fprintf(w, "Phone:    %s\n", u.Phone)
				fmt.Fprintf(w, "Address:  %s, %s\n", u.Address, u.City)
				fmt.Fprintf(w, "Points:   %s\n", u.LoyaltyPoints.StringFixed(2))
				if exp, ok := a.dev.Session.Expiry(); ok {
					fmt.Fprintf(w, "Session:  valid until %s\n", exp.Local().Format("2006-01-02 15:04"))
				}
			})
		},
	}
}

func newProductsCmd(a *app) *cobra.Command {
	var category, search string
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.dev.Catalog.List(cmd.Context(), category, search)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), list, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SLUG\tTITLE\tPRICE\tSTOCK")
				for _, p := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.Slug, p.Title, p.Price.StringFixed(2), p.Stock)
				}
				tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category slug")
	cmd.Flags().StringVar(&search, "search", "", "title search")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <slug>...",
		Short: "Add products to the cart by slug",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c domain.Cart
			for _, slug := range args {
				var err error
				if c, err = a.dev.AddBySlug(cmd.Context(), slug); err != nil {
					return fmt.Errorf("add %s: %w", slug, err)
				}
			}
			return a.printCart(cmd.OutOrStdout(), c)
		},
	}
}

func newCartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cart",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.dev.Cart.Snapshot()
			if err != nil {
				return err
			}
			return a.printCart(cmd.OutOrStdout(), c)
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	var expect int64
	cmd := &cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Change a line's quantity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity %q: %w", args[1], err)
			}
			c, err := a.dev.Cart.SetQuantity(cmd.Context(), args[0], qty, expectVersion(expect)...)
			if err != nil {
				return err
			}
			return a.printCart(cmd.OutOrStdout(), c)
		},
	}
	cmd.Flags().Int64Var(&expect, "expect-version", -1, "only apply if the cart is at this version")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.dev.Cart.RemoveItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printCart(cmd.OutOrStdout(), c)
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.dev.Cart.Clear(cmd.Context())
			if err != nil {
				return err
			}
			return a.printCart(cmd.OutOrStdout(), c)
		},
	}
}

func newQuoteCmd(a *app) *cobra.Command {
	var loyalty bool
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Preview the order total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := a.dev.Quote.SetUseLoyalty(loyalty)
			return a.print(cmd.OutOrStdout(), q, func(w io.Writer) { printQuote(w, q) })
		},
	}
	cmd.Flags().BoolVar(&loyalty, "loyalty", false, "spend loyalty points")
	return cmd
}

func newCheckoutCmd(a *app) *cobra.Command {
	var (
		loyalty bool
		contact domain.ShippingInfo
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place the order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := checkout.Submission{UseLoyalty: loyalty, Contact: contact}
			if !a.dev.Session.Identity().IsGuest() && (contact.Address != "" || contact.City != "") {
				in.Override = &domain.AddressOverride{Address: contact.Address, City: contact.City}
			}
			conf, err := a.dev.Checkout.Submit(cmd.Context(), in)
			if err != nil {
				return a.fail(cmd, err)
			}
			return a.print(cmd.OutOrStdout(), conf, func(w io.Writer) {
				fmt.Fprintf(w, "Order %s placed. Total %s.\n", conf.OrderID, conf.Total)
				if conf.PointsEarnedPending != "" && conf.PointsEarnedPending != "0.00" {
					fmt.Fprintf(w, "%s loyalty points will be credited once the order is delivered.\n", conf.PointsEarnedPending)
				}
			})
		},
	}
	f := cmd.Flags()
	f.BoolVar(&loyalty, "loyalty", false, "spend loyalty points")
	f.StringVar(&contact.FullName, "name", "", "full name (guests)")
	f.StringVar(&contact.Email, "email", "", "email (guests)")
	f.StringVar(&contact.Phone, "phone", "", "phone (guests)")
	f.StringVar(&contact.Address, "address", "", "delivery address")
	f.StringVar(&contact.City, "city", "", "delivery city")
	return cmd
}

func newOrdersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.dev.Orders.ListMine(cmd.Context())
			if err != nil {
				return a.fail(cmd, err)
			}
			return a.print(cmd.OutOrStdout(), list, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ORDER\tDATE\tSTATUS\tITEMS\tTOTAL")
				for _, o := range list {
					items := 0
					for _, it := range o.Items {
						items += it.Quantity
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", o.ID, o.CreatedAt.Local().Format("2006-01-02"), o.Status, items, o.TotalAmount.StringFixed(2))
				}
				tw.Flush()
			})
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Add a shopping list (slug,quantity) to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			report, err := importer.NewCSVImporter(f, a.dev.Catalog, a.dev.Cart).Run(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), report, func(w io.Writer) {
				fmt.Fprintf(w, "Added %d items from %d lines.\n", report.Items, report.Lines)
				for _, s := range report.Skipped {
					fmt.Fprintf(w, "  line %d skipped (%s): %s\n", s.Line, s.Slug, s.Reason)
				}
			})
		},
	}
}

func newDemoBackendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "demo-backend",
		Short:       "Run an in-memory shop backend with a demo catalog",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"device": "none"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := backendtest.New()
			defer srv.Close()
			products := seed.Apply(srv)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Demo backend listening on %s with %d products.\n", srv.URL(), len(products))
			fmt.Fprintf(w, "Sign in with: shopctl --backend %s login --email %s --password %s\n", srv.URL(), seed.DemoEmail, seed.DemoPassword)
			<-cmd.Context().Done()
			return nil
		},
	}
}

func expectVersion(v int64) []cart.MutateOption {
	if v < 0 {
		return nil
	}
	return []cart.MutateOption{cart.IfVersion(uint64(v))}
}

func (a *app) printCart(w io.Writer, c domain.Cart) error {
	return a.print(w, c, func(w io.Writer) {
		if len(c.Lines) == 0 {
			fmt.Fprintln(w, "Your cart is empty.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PRODUCT\tTITLE\tQTY\tPRICE\tTOTAL")
		for _, l := range c.Lines {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", l.ProductID, l.Title, l.Quantity, l.Price.StringFixed(2), l.Total().StringFixed(2))
		}
		tw.Flush()
		fmt.Fprintf(w, "%d items, subtotal %s (version %d)\n", c.ItemCount(), c.Subtotal().StringFixed(2), c.Version)
	})
}

func printQuote(w io.Writer, q domain.Quote) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Subtotal\t%s\t\n", q.Subtotal.StringFixed(2))
	fmt.Fprintf(tw, "Shipping\t%s\t\n", q.ShippingFlatFee.StringFixed(2))
	if q.LoyaltyDeduction.IsPositive() {
		fmt.Fprintf(tw, "Loyalty\t-%s\t\n", q.LoyaltyDeduction.StringFixed(2))
	}
	fmt.Fprintf(tw, "Total\t%s\t\n", q.Total.StringFixed(2))
	tw.Flush()
	switch {
	case q.LoyaltyAvailable && q.LoyaltyDeduction.IsZero():
		fmt.Fprintln(w, "You have loyalty points: add --loyalty to spend them.")
	case !q.EarnsPoints:
		fmt.Fprintln(w, "Sign in to earn loyalty points on this order.")
	default:
		fmt.Fprintf(w, "This order earns %s points.\n", q.PointsToEarn.StringFixed(2))
	}
}
