package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"salesforecast/internal/config"
	"salesforecast/internal/exporter"
	"salesforecast/internal/infrastructure"
	"salesforecast/internal/model"
	"salesforecast/internal/services"
	"salesforecast/internal/session"
	"salesforecast/internal/validation"
	"salesforecast/pkg/contracts"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every subcommand
type globals struct {
	modelPath string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "forecastctl",
		Short:         "Offline sales forecasting from a history file",
		Long:          "Runs the forecast pipeline of the sales forecast server against local files, without the HTTP API.",
		Version:       contracts.GetFullVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&g.modelPath, "model", "m", "", "Model artifact (defaults to SALES_MODEL_PATH or "+config.DefaultModelPath+")")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Verbose logging to stderr")

	rootCmd.AddCommand(runCmd(g))
	rootCmd.AddCommand(stockCmd(g))
	rootCmd.AddCommand(inspectModelCmd(g))
	return rootCmd
}

// pipeline is a forecast service over a single-session store
type pipeline struct {
	models  *model.Registry
	service *services.ForecastService
	files   *validation.FileValidator
}

func (g *globals) pipeline(cmd *cobra.Command) (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.modelPath != "" {
		cfg.Model.Path = g.modelPath
	}
	// Any horizon up to the maximum may be forecast offline
	cfg.Forecast.AllowAnyHorizon = true

	cfg.Logging.Level = "warn"
	if g.verbose {
		cfg.Logging.Level = "debug"
	}
	logger := infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())

	store, err := session.NewStore(1, 0)
	if err != nil {
		return nil, err
	}
	models := model.NewRegistry(cfg.Model.Path, logger)
	return &pipeline{
		models:  models,
		service: services.NewForecastService(cfg.Forecast, models, store, logger),
		files:   validation.NewFileValidator(logger),
	}, nil
}

func (p *pipeline) upload(ctx context.Context, path string, horizon int) (*session.Session, error) {
	if _, err := p.files.ValidateHistoryFile(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()
	return p.service.Upload(ctx, filepath.Base(path), f, horizon)
}

func runCmd(g *globals) *cobra.Command {
	var (
		history string
		horizon int
		out     string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Forecast a history file and write the forecast table",
		Long: `Loads a CSV or XLSX sales history, forecasts every SKU and store pair for
the given number of days and writes Date, SKU, Store_ID, Predicted_Sales rows.
Without --out the table is written to stdout as CSV.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := exporter.ParseFormat(format)
			if err != nil {
				return err
			}
			if out != "" && !cmd.Flags().Changed("format") {
				if ext := strings.TrimPrefix(filepath.Ext(out), "."); ext != "" {
					if byExt, err := exporter.ParseFormat(ext); err == nil {
						f = byExt
					}
				}
			}

			p, err := g.pipeline(cmd)
			if err != nil {
				return err
			}
			sess, err := p.upload(cmd.Context(), history, horizon)
			if err != nil {
				return err
			}

			if out == "" {
				return p.service.Export(cmd.Context(), sess.ID, f, cmd.OutOrStdout())
			}
			if err := p.files.ValidateOutputDirectory(filepath.Dir(out)); err != nil {
				return err
			}
			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			if err := p.service.Export(cmd.Context(), sess.ID, f, file); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Forecast of %d rows (%d SKUs, %d stores, %d days) written to %s\n",
				sess.Result.Len(), len(sess.Dimensions.SKUs), len(sess.Dimensions.Stores), sess.Horizon, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&history, "history", "", "Sales history file (.csv or .xlsx)")
	cmd.Flags().IntVar(&horizon, "horizon", 30, "Days to forecast")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (stdout when empty)")
	cmd.Flags().StringVar(&format, "format", string(exporter.FormatCSV), "Output format: csv or xlsx")
	_ = cmd.MarkFlagRequired("history")
	return cmd
}

func stockCmd(g *globals) *cobra.Command {
	var (
		history string
		sku     string
		stock   int64
		horizon int
	)
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Compare current stock of a SKU with its forecast demand",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stock < 0 {
				return fmt.Errorf("--stock must not be negative")
			}
			p, err := g.pipeline(cmd)
			if err != nil {
				return err
			}
			sess, err := p.upload(cmd.Context(), history, horizon)
			if err != nil {
				return err
			}
			report, err := p.service.StockCheck(cmd.Context(), sess.ID, sku, stock)
			if err != nil {
				return err
			}
			printStock(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&history, "history", "", "Sales history file (.csv or .xlsx)")
	cmd.Flags().StringVar(&sku, "sku", "", "SKU to check")
	cmd.Flags().Int64Var(&stock, "stock", 0, "Current stock level")
	cmd.Flags().IntVar(&horizon, "horizon", 30, "Days to forecast")
	_ = cmd.MarkFlagRequired("history")
	_ = cmd.MarkFlagRequired("sku")
	_ = cmd.MarkFlagRequired("stock")
	return cmd
}

func printStock(w io.Writer, r *services.StockReport) {
	fmt.Fprintf(w, "SKU:            %s\n", r.SKU)
	fmt.Fprintf(w, "Horizon:        %d days\n", r.Horizon)
	fmt.Fprintf(w, "Current stock:  %d\n", r.CurrentStock)
	fmt.Fprintf(w, "Forecast:       %d\n", r.Forecast)
	if r.Sufficient {
		fmt.Fprintln(w, "Stock level is sufficient for forecasted demand.")
		return
	}
	fmt.Fprintf(w, "Shortfall:      %d\n", r.Shortfall)
	fmt.Fprintf(w, "Current stock (%d) is less than forecasted demand (%d)\n", r.CurrentStock, r.Forecast)
}

func inspectModelCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect-model",
		Short: "Print the kind and feature names of a model artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.pipeline(cmd)
			if err != nil {
				return err
			}
			if err := p.files.ValidateModelFile(p.models.Path()); err != nil {
				return err
			}
			m, err := p.models.Get(cmd.Context())
			if err != nil {
				return err
			}

			info := model.Describe(m)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Model:    %s\n", p.models.Path())
			fmt.Fprintf(w, "Kind:     %s\n", info.Kind)
			if info.Version != "" {
				fmt.Fprintf(w, "Version:  %s\n", info.Version)
			}
			if info.Trees > 0 {
				fmt.Fprintf(w, "Trees:    %d\n", info.Trees)
			}
			fmt.Fprintf(w, "Features: %d\n", len(info.Features))
			for _, name := range info.Features {
				fmt.Fprintf(w, "  - %s\n", name)
			}
			return nil
		},
	}
}
