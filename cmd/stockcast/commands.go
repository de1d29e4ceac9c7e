package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DaDevFox/task-systems/stockcast/internal/domain"
	"github.com/DaDevFox/task-systems/stockcast/internal/forecast"
	stockgrpc "github.com/DaDevFox/task-systems/stockcast/internal/grpc"
	"github.com/DaDevFox/task-systems/stockcast/internal/logging"
	"github.com/DaDevFox/task-systems/stockcast/internal/service"
)

const requestTimeout = 10 * time.Second

type options struct {
	out       io.Writer
	server    string
	output    string
	period    int
	logLevel  string
	logFormat string
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	rootCmd := &cobra.Command{
		Use:           "stockcast",
		Short:         "Forecast daily sales",
		Long:          "Forecast daily sales series locally or through a stockcast server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", "", "stockcast gRPC server address; empty runs locally")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format (table, json)")
	rootCmd.PersistentFlags().IntVar(&opts.period, "period", forecast.DefaultSeasonalPeriod, "seasonal period for the sarima strategy")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level for local runs")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format for local runs (text, json)")

	rootCmd.AddCommand(newForecastCommand(opts))
	rootCmd.AddCommand(newSelectCommand(opts))
	rootCmd.AddCommand(newBacktestCommand(opts))
	rootCmd.AddCommand(newProductCommand(opts))

	return rootCmd
}

func newForecastCommand(opts *options) *cobra.Command {
	var model string
	var steps int

	cmd := &cobra.Command{
		Use:   "forecast VALUE...",
		Short: "Forecast the next steps of a series",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := parseSeries(args)
			if err != nil {
				return err
			}

			var result *forecast.ForecastResult
			if opts.server != "" {
				result, err = withClient(opts, func(ctx context.Context, client *stockgrpc.Client) (*forecast.ForecastResult, error) {
					return client.ForecastSeries(ctx, series, steps, model)
				})
			} else {
				result, err = localForecast(opts, series, steps, model)
			}
			if err != nil {
				return err
			}

			return opts.render(result, func(w io.Writer) {
				fmt.Fprintf(w, "Model: %s", result.Model)
				if result.Degraded {
					fmt.Fprint(w, " (fallback)")
				}
				fmt.Fprintln(w)
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "STEP\tFORECAST\tLOWER\tUPPER")
				for i, ci := range result.ConfidenceIntervals {
					fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\n", i+1, ci.Forecast, ci.Lower, ci.Upper)
				}
				tw.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "auto", "strategy (auto, ma7, ses, arima, sarima)")
	cmd.Flags().IntVarP(&steps, "steps", "s", 7, "number of steps to forecast")

	return cmd
}

func newSelectCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "select VALUE...",
		Short: "Print the strategy auto selection would use",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := parseSeries(args)
			if err != nil {
				return err
			}
			model := forecast.SelectBestModel(series)
			return opts.render(map[string]any{"model": model, "points": len(series)}, func(w io.Writer) {
				fmt.Fprintln(w, model)
			})
		},
	}
}

func newBacktestCommand(opts *options) *cobra.Command {
	var holdout int

	cmd := &cobra.Command{
		Use:   "backtest VALUE...",
		Short: "Score every strategy on the last holdout points of a series",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := parseSeries(args)
			if err != nil {
				return err
			}

			engine := forecast.NewEngine(forecast.EngineConfig{SeasonalPeriod: opts.period}, opts.logger())
			results, err := forecast.Backtest(engine, series, holdout)
			if err != nil {
				return err
			}
			return opts.render(results, func(w io.Writer) { renderFitness(w, results) })
		},
	}

	cmd.Flags().IntVar(&holdout, "holdout", 7, "number of trailing points held out for scoring")

	return cmd
}

func newProductCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage stored products on a stockcast server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.server == "" {
				return fmt.Errorf("product commands need --server")
			}
			return nil
		},
	}

	cmd.AddCommand(newProductCreateCommand(opts))
	cmd.AddCommand(newProductSaleCommand(opts))
	cmd.AddCommand(newProductForecastCommand(opts))
	cmd.AddCommand(newProductEvaluateCommand(opts))

	return cmd
}

func newProductCreateCommand(opts *options) *cobra.Command {
	var in stockgrpc.ProductInput
	var price string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			unitPrice, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", price, err)
			}
			in.UnitPrice = unitPrice

			product, err := withClient(opts, func(ctx context.Context, client *stockgrpc.Client) (*domain.Product, error) {
				return client.CreateProduct(ctx, in)
			})
			if err != nil {
				return err
			}
			return opts.render(product, func(w io.Writer) {
				fmt.Fprintf(w, "Created product: %s (ID: %s)\n", in.Name, product.ID)
			})
		},
	}

	cmd.Flags().StringVar(&in.SKU, "sku", "", "stock keeping unit")
	cmd.Flags().StringVar(&in.Category, "category", "", "product category")
	cmd.Flags().StringVar(&price, "price", "0", "unit price")
	cmd.Flags().Float64Var(&in.StockLevel, "stock", 0, "units in stock")
	cmd.Flags().Float64Var(&in.ReorderPoint, "reorder-point", 0, "stock level that triggers a reorder")
	cmd.Flags().IntVar(&in.LeadTimeDays, "lead-time", 0, "supplier lead time in days")

	return cmd
}

func newProductSaleCommand(opts *options) *cobra.Command {
	var soldAt string
	var source string

	cmd := &cobra.Command{
		Use:   "sale PRODUCT_ID QUANTITY",
		Short: "Record a sale",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[1], err)
			}
			var at time.Time
			if soldAt != "" {
				if at, err = time.Parse(time.RFC3339, soldAt); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			res, err := withClient(opts, func(ctx context.Context, client *stockgrpc.Client) (*stockgrpc.SaleResult, error) {
				return client.RecordSale(ctx, args[0], quantity, at, source)
			})
			if err != nil {
				return err
			}
			return opts.render(res, func(w io.Writer) {
				fmt.Fprintf(w, "Recorded sale %s; %s now has %.2f in stock\n", res.Sale.ID, res.Product.Name, res.Product.StockLevel)
			})
		},
	}

	cmd.Flags().StringVar(&soldAt, "at", "", "sale time (RFC 3339); defaults to now")
	cmd.Flags().StringVar(&source, "source", "cli", "sale channel")

	return cmd
}

func newProductForecastCommand(opts *options) *cobra.Command {
	var model string
	var steps int

	cmd := &cobra.Command{
		Use:   "forecast PRODUCT_ID",
		Short: "Forecast a product's demand and stock position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := withClient(opts, func(ctx context.Context, client *stockgrpc.Client) (*service.ProductForecast, error) {
				return client.Forecast(ctx, args[0], steps, model)
			})
			if err != nil {
				return err
			}
			return opts.render(pf, func(w io.Writer) { renderProductForecast(w, pf) })
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "auto", "strategy (auto, ma7, ses, arima, sarima)")
	cmd.Flags().IntVarP(&steps, "steps", "s", 0, "days to forecast; 0 uses the server default")

	return cmd
}

func newProductEvaluateCommand(opts *options) *cobra.Command {
	var holdout int

	cmd := &cobra.Command{
		Use:   "evaluate PRODUCT_ID",
		Short: "Backtest every strategy on a product's sales history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := withClient(opts, func(ctx context.Context, client *stockgrpc.Client) ([]forecast.ModelFitness, error) {
				return client.Evaluate(ctx, args[0], holdout)
			})
			if err != nil {
				return err
			}
			return opts.render(results, func(w io.Writer) { renderFitness(w, results) })
		},
	}

	cmd.Flags().IntVar(&holdout, "holdout", 0, "days held out for scoring; 0 uses the server default")

	return cmd
}

func localForecast(opts *options, series []float64, steps int, model string) (*forecast.ForecastResult, error) {
	name, err := forecast.ParseModelName(model)
	if err != nil {
		return nil, err
	}
	engine := forecast.NewEngine(forecast.EngineConfig{SeasonalPeriod: opts.period}, opts.logger())
	return engine.ForecastWithConfidence(series, steps, name)
}

func withClient[T any](opts *options, call func(ctx context.Context, client *stockgrpc.Client) (T, error)) (T, error) {
	var zero T
	client, conn, err := stockgrpc.Dial(opts.server)
	if err != nil {
		return zero, fmt.Errorf("failed to connect to %s: %w", opts.server, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return call(ctx, client)
}

func (o *options) logger() *logrus.Logger {
	return logging.NewWithOutput(os.Stderr, o.logLevel, o.logFormat)
}

// render writes v as JSON or hands the writer to table.
func (o *options) render(v any, table func(w io.Writer)) error {
	switch strings.ToLower(o.output) {
	case "json":
		enc := json.NewEncoder(o.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "table", "":
		table(o.out)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table or json)", o.output)
	}
}

func renderProductForecast(w io.Writer, pf *service.ProductForecast) {
	fmt.Fprintf(w, "Product: %s  Model: %s  History: %d days\n", pf.ProductID, pf.Result.Model, pf.HistoryDays)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tDEMAND\tLOWER\tUPPER")
	for i, ci := range pf.Result.ConfidenceIntervals {
		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\n", i+1, ci.Forecast, ci.Lower, ci.Upper)
	}
	tw.Flush()

	stockout := "beyond horizon"
	if pf.DaysUntilStockout >= 0 {
		stockout = fmt.Sprintf("%d days", pf.DaysUntilStockout)
	}
	fmt.Fprintf(w, "Total demand: %.2f  Stockout: %s  Revenue: %s\n", pf.TotalDemand, stockout, pf.ProjectedRevenue.StringFixed(2))
	if pf.ReorderRecommended {
		fmt.Fprintf(w, "Reorder recommended: %.0f units\n", pf.SuggestedOrderQty)
	}
}

func renderFitness(w io.Writer, results []forecast.ModelFitness) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tMODEL\tFITNESS\tMAE\tMAPE")
	for i, r := range results {
		model := string(r.Model)
		if r.Degraded {
			model += "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%.2f\t%.1f%%\n", i+1, model, r.FitnessScore, r.MAE, r.MAPE)
	}
	tw.Flush()
}

// parseSeries accepts values as separate arguments, comma separated, or both.
func parseSeries(args []string) ([]float64, error) {
	var series []float64
	for _, arg := range args {
		for _, field := range strings.Split(arg, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q: %w", field, err)
			}
			series = append(series, v)
		}
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no values given")
	}
	return series, nil
}
