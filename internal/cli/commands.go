package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/events"
	"github.com/aristath/tradingdesk/internal/modules/bot"
	"github.com/aristath/tradingdesk/internal/modules/portfolio"
	"github.com/aristath/tradingdesk/internal/modules/settings"
	"github.com/aristath/tradingdesk/internal/modules/trading"
)

type options struct {
	server  string
	timeout time.Duration
	json    bool
	out     io.Writer
}

func (o *options) client() *Client {
	return NewClient(o.server, o.timeout)
}

// print renders v as indented JSON when --json is set, otherwise calls table.
func (o *options) print(v interface{}, table func(w *tabwriter.Writer)) error {
	if o.json {
		enc := json.NewEncoder(o.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	w := tabwriter.NewWriter(o.out, 0, 4, 2, ' ', 0)
	table(w)
	return w.Flush()
}

// NewRootCmd creates the deskctl root command
func NewRootCmd() *cobra.Command {
	opts := &options{out: os.Stdout}

	rootCmd := &cobra.Command{
		Use:          "deskctl",
		Short:        "Control a running trading desk",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.out = cmd.OutOrStdout()
		},
	}

	server := os.Getenv("DESK_URL")
	if server == "" {
		server = "http://localhost:8001"
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", server, "Desk API base URL (env DESK_URL)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print raw JSON")

	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newBotActionCmd(opts, "start", "Start the trading bot"))
	rootCmd.AddCommand(newBotActionCmd(opts, "stop", "Stop the trading bot"))
	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newIntervalCmd(opts))
	rootCmd.AddCommand(newPortfolioCmd(opts))
	rootCmd.AddCommand(newTradesCmd(opts))
	rootCmd.AddCommand(newActivityCmd(opts))
	rootCmd.AddCommand(newProvidersCmd(opts))

	return rootCmd
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show bot and market status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := opts.client()

			var st bot.Status
			if err := c.Get(ctx, "/api/bot/status", nil, &st); err != nil {
				return err
			}
			var market map[string]interface{}
			if err := c.Get(ctx, "/api/market/status", nil, &market); err != nil {
				return err
			}

			return opts.print(map[string]interface{}{"bot": st, "market": market}, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Bot\t%s\n", runningLabel(st.IsRunning))
				fmt.Fprintf(w, "Interval\t%d min\n", st.IntervalMinutes)
				if st.LastTradeTime != nil {
					fmt.Fprintf(w, "Last trade\t%s\n", st.LastTradeTime.Local().Format(time.RFC1123))
				}
				if st.IsAnalyzing {
					fmt.Fprintf(w, "Cycle\tanalyzing\n")
				}
				if open, _ := market["is_open"].(bool); open {
					fmt.Fprintf(w, "Market\topen, closes %v\n", market["closes_at"])
				} else {
					fmt.Fprintf(w, "Market\tclosed, opens %v\n", market["opens_at"])
				}
			})
		},
	}
}

func runningLabel(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func newBotActionCmd(opts *options, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st bot.Status
			if err := opts.client().Send(cmd.Context(), http.MethodPost, "/api/bot/"+action, nil, &st); err != nil {
				return err
			}
			return opts.print(st, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Bot\t%s\n", runningLabel(st.IsRunning))
			})
		},
	}
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Queue one trading cycle now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]string
			if err := opts.client().Send(cmd.Context(), http.MethodPost, "/api/bot/run", nil, &result); err != nil {
				return err
			}
			return opts.print(result, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Cycle\t%s\n", result["status"])
			})
		},
	}
}

func newIntervalCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "interval MINUTES",
		Short: "Set minutes between trading cycles (1-60)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[0])
			if err != nil || minutes < 1 || minutes > 60 {
				return fmt.Errorf("interval must be a whole number of minutes between 1 and 60")
			}
			var st bot.Status
			body := map[string]int{"minutes": minutes}
			if err := opts.client().Send(cmd.Context(), http.MethodPut, "/api/bot/interval", body, &st); err != nil {
				return err
			}
			return opts.print(st, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Interval\t%d min\n", st.IntervalMinutes)
			})
		},
	}
}

func newPortfolioCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show the portfolio summary and provider allocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var s portfolio.Summary
			if err := opts.client().Get(cmd.Context(), "/api/portfolio", nil, &s); err != nil {
				return err
			}
			return opts.print(s, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Cash\t$%.2f\n", s.CashBalance)
				fmt.Fprintf(w, "Holdings\t$%.2f (%d positions)\n", s.HoldingsValue, s.HoldingsCount)
				fmt.Fprintf(w, "Total\t$%.2f\n", s.TotalValue)
				fmt.Fprintf(w, "Return\t$%.2f (%.2f%%)\n\n", s.TotalReturn, s.ReturnPercentage)
				fmt.Fprintln(w, "PROVIDER\tINVESTED\tCEILING\tUSABLE\t")
				for _, a := range s.Allocations {
					flag := ""
					if a.Exceeded {
						flag = "over ceiling"
					}
					fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%s\n", a.Provider, a.Invested, a.Ceiling, a.UsableCash, flag)
				}
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "holdings",
		Short: "List holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var holdings []domain.Holding
			if err := opts.client().Get(cmd.Context(), "/api/portfolio/holdings", nil, &holdings); err != nil {
				return err
			}
			return opts.print(holdings, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "PROVIDER\tSYMBOL\tQTY\tAVG COST\tPRICE\tVALUE")
				for _, h := range holdings {
					fmt.Fprintf(w, "%s\t%s\t%g\t%.2f\t%.2f\t%.2f\n",
						h.Provider, h.Symbol, h.Quantity, h.AverageCost, h.CurrentPrice, h.MarketValue())
				}
			})
		},
	})

	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Wipe holdings and trades and restore the initial balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset deletes every holding and trade; pass --yes to confirm")
			}
			if err := opts.client().Send(cmd.Context(), http.MethodPost, "/api/portfolio/reset", nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(opts.out, "Portfolio reset")
			return nil
		},
	}
	reset.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	cmd.AddCommand(reset)

	cmd.AddCommand(&cobra.Command{
		Use:   "reconcile",
		Short: "Pull cash and positions from the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]interface{}
			if err := opts.client().Send(cmd.Context(), http.MethodPost, "/api/portfolio/reconcile", nil, &result); err != nil {
				return err
			}
			return opts.print(result, func(w *tabwriter.Writer) {
				for _, k := range []string{"cash", "equity", "updated", "inserted", "deleted"} {
					fmt.Fprintf(w, "%s\t%v\n", k, result[k])
				}
			})
		},
	})

	return cmd
}

func newTradesCmd(opts *options) *cobra.Command {
	var provider, symbol string
	var limit, days int

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List executed trades, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := map[string]string{"limit": strconv.Itoa(limit)}
			if provider != "" {
				query["provider"] = strings.ToLower(provider)
			}
			if symbol != "" {
				query["symbol"] = strings.ToUpper(symbol)
			}
			if days > 0 {
				query["days"] = strconv.Itoa(days)
			}
			var trades []trading.Trade
			if err := opts.client().Get(cmd.Context(), "/api/trades", query, &trades); err != nil {
				return err
			}
			return opts.print(trades, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "TIME\tPROVIDER\tACTION\tSYMBOL\tQTY\tPRICE\tCONF")
				for _, t := range trades {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.2f\t%d\n",
						t.ExecutedAt.Local().Format("2006-01-02 15:04"), t.Provider, t.Action, t.Symbol, t.Quantity, t.Price, t.Confidence)
				}
			})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&symbol, "symbol", "", "Filter by symbol")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum trades to show")
	cmd.Flags().IntVar(&days, "days", 0, "Only trades from the last N days")
	return cmd
}

func newActivityCmd(opts *options) *cobra.Command {
	var action, provider string
	var limit int

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the activity log",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := map[string]string{"limit": strconv.Itoa(limit)}
			if action != "" {
				query["action"] = action
			}
			if provider != "" {
				query["provider"] = provider
			}
			var activities []events.Activity
			if err := opts.client().Get(cmd.Context(), "/api/activity", query, &activities); err != nil {
				return err
			}
			return opts.print(activities, func(w *tabwriter.Writer) {
				for _, a := range activities {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						a.CreatedAt.Local().Format("01-02 15:04:05"), a.Action, a.Provider, a.Symbol, a.Details)
				}
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "Filter by action, e.g. AUTO_TRADE")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show")
	return cmd
}

type providerRow struct {
	domain.ProviderConfig
	HasAPIKey bool `json:"has_api_key"`
}

func newProvidersCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List AI providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var providers []providerRow
			if err := opts.client().Get(cmd.Context(), "/api/providers", nil, &providers); err != nil {
				return err
			}
			return opts.print(providers, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "PROVIDER\tACTIVE\tKEY\tCEILING\tPERSONA\tMODEL")
				for _, p := range providers {
					fmt.Fprintf(w, "%s\t%t\t%t\t%.2f\t%s\t%s\n",
						p.Name, p.Active, p.HasAPIKey, p.AllocationCeiling, p.Persona, p.Model)
				}
			})
		},
	}
	cmd.AddCommand(newProviderSetCmd(opts))
	return cmd
}

func newProviderSetCmd(opts *options) *cobra.Command {
	var (
		active, inactive bool
		ceiling          float64
		persona, model   string
		apiKeyEnv        string
	)

	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Update a provider's settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update settings.ProviderUpdate
			flags := cmd.Flags()
			switch {
			case active && inactive:
				return fmt.Errorf("--active and --inactive are mutually exclusive")
			case active:
				update.Active = &active
			case inactive:
				off := false
				update.Active = &off
			}
			if flags.Changed("ceiling") {
				update.AllocationCeiling = &ceiling
			}
			if flags.Changed("persona") {
				update.Persona = &persona
			}
			if flags.Changed("model") {
				update.Model = &model
			}
			if apiKeyEnv != "" {
				key := os.Getenv(apiKeyEnv)
				if key == "" {
					return fmt.Errorf("environment variable %s is empty", apiKeyEnv)
				}
				update.APIKey = &key
			}

			var p providerRow
			path := "/api/providers/" + strings.ToLower(args[0])
			if err := opts.client().Send(cmd.Context(), http.MethodPut, path, update, &p); err != nil {
				return err
			}
			return opts.print(p, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "%s\tactive=%t\tceiling=%.2f\tpersona=%s\n", p.Name, p.Active, p.AllocationCeiling, p.Persona)
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "Let the provider trade")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Stop the provider from trading")
	cmd.Flags().Float64Var(&ceiling, "ceiling", 0, "Allocation ceiling in dollars")
	cmd.Flags().StringVar(&persona, "persona", "", "Trading persona")
	cmd.Flags().StringVar(&model, "model", "", "Model name override")
	cmd.Flags().StringVar(&apiKeyEnv, "api-key-env", "", "Read the API key from this environment variable")
	return cmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
