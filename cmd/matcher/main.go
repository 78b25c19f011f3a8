// Command matcher reconciles INR-quoted crypto buys against USDT-quoted sells
// from an exchange trade export and writes the per-day summaries.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"inr-trade-matcher/internal/api"
	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/matcher"
	"inr-trade-matcher/internal/report"
	"inr-trade-matcher/internal/service"
	"inr-trade-matcher/internal/store"
	"inr-trade-matcher/internal/types"
)

// exitNoMatches is returned when the input held trades but nothing matched.
const exitNoMatches = 2

type flags struct {
	config       string
	input        string
	sellInput    string
	strategy     string
	buyWindow    string
	trackSkipped bool
	inventory    string
	sellPrice    string
	precision    int
	format       string
	output       string
	server       string
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.config, "config", "config.yaml", "path to config file")
	flag.StringVar(&f.input, "input", "", "trade export (.csv, .html, http(s) URL, or - for stdin) (required)")
	flag.StringVar(&f.sellInput, "sell-input", "", "sell-side export; enables P&L reconciliation against -input")
	flag.StringVar(&f.strategy, "strategy", "", "aggregate, daily, fifo or chronological (overrides config)")
	flag.StringVar(&f.buyWindow, "buy-window", "", "daily buy window: cumulative or sameDay")
	flag.BoolVar(&f.trackSkipped, "track-skipped", false, "record unmatched activity in the result")
	flag.StringVar(&f.inventory, "inventory", "", "lot store: memory, sqlite or auto")
	flag.StringVar(&f.sellPrice, "sell-price", "", "P&L sell price basis: usdt or inr")
	flag.IntVar(&f.precision, "precision", 0, "decimal places in reports (2-10)")
	flag.StringVar(&f.format, "format", "text", "output format: text, json, or csv")
	flag.StringVar(&f.output, "output", "", "output file (text/json) or directory (csv)")
	flag.StringVar(&f.server, "server", "", "matchd base URL; when set the files are matched remotely")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()
	if f.input == "" {
		fmt.Println("Error: -input is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := initializeSystem(); err != nil {
		fmt.Printf("Error initializing: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = logger.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx, f.config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if f.strategy != "" {
		s, err := types.ParseStrategy(f.strategy)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		f.strategy = s.String()
	}
	if err := applyFlags(cfg, f); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	strategy, err := types.ParseStrategy(cfg.Strategy)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	format, err := report.ParseFormat(f.format)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if f.server != "" {
		if err := checkRemoteFlags(f); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		err = runRemote(ctx, cfg, f, strategy, format)
	} else {
		err = runLocal(ctx, cfg, f, strategy, format)
	}
	switch {
	case err == nil:
	case errors.Is(err, matcher.ErrNoMatches):
		fmt.Fprintln(os.Stderr, "No buy/sell pairs could be matched")
		os.Exit(exitNoMatches)
	default:
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func runLocal(ctx context.Context, cfg *store.Config, f *flags, strategy types.Strategy, format report.Format) error {
	svc, err := service.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	rw := report.New(cfg.Report.Precision)

	if f.sellInput != "" {
		buy, err := readInput(f.input)
		if err != nil {
			return err
		}
		sell, err := readInput(f.sellInput)
		if err != nil {
			return err
		}
		rec, err := svc.Reconcile(ctx, f.input, buy, f.sellInput, sell, strategy)
		if err != nil {
			return err
		}
		if format == report.FormatJSON {
			return writeOutput(f.output, func(w io.Writer) error { return writeJSON(w, rec) })
		}
		out := f.output
		if format == report.FormatCSV && out == "" {
			out = filepath.Join(cfg.Report.OutputDir, filePrefix(f.input)+"_pnl.csv")
		}
		return writeOutput(out, func(w io.Writer) error { return rw.WritePnL(w, rec.Report) })
	}

	var res *service.Result
	if isRemote(f.input) {
		res, err = svc.ProcessURL(ctx, f.input, strategy)
	} else {
		data, rerr := readInput(f.input)
		if rerr != nil {
			return rerr
		}
		res, err = svc.Process(ctx, f.input, data, strategy)
	}
	if res == nil {
		return err
	}
	if werr := emit(cfg, f, rw, format, res); werr != nil {
		return werr
	}
	return err
}

// runRemote sends the files to a matchd instance. CSV replies are written
// verbatim; text is rendered locally from the JSON reply, as is any result
// that comes back with nothing matched.
func runRemote(ctx context.Context, cfg *store.Config, f *flags, strategy types.Strategy, format report.Format) error {
	client := api.NewClient(f.server, api.WithLogging(logger.IsDebugEnabled()))
	if err := client.WaitHealthy(ctx, api.DefaultRetryConfig()); err != nil {
		return fmt.Errorf("server %s not reachable: %w", f.server, err)
	}

	buy, err := readInput(f.input)
	if err != nil {
		return err
	}

	if f.sellInput != "" {
		sell, err := readInput(f.sellInput)
		if err != nil {
			return err
		}
		wire := "json"
		if format == report.FormatCSV {
			wire = "csv"
		}
		resp, err := client.PnL(ctx, filepath.Base(f.input), buy, filepath.Base(f.sellInput), sell, strategy, wire)
		if err != nil {
			return err
		}
		return writeOutput(f.output, func(w io.Writer) error {
			_, err := w.Write(resp.Body)
			return err
		})
	}

	wire := "json"
	if format == report.FormatCSV {
		wire = "csv"
	}
	mr, resp, err := client.Match(ctx, filepath.Base(f.input), buy, strategy, wire)
	switch {
	case errors.Is(err, matcher.ErrNoMatches) && mr != nil:
		// Nothing matched: render the returned result locally.
	case err != nil:
		return err
	case format == report.FormatCSV:
		out := f.output
		if out == "" {
			out = filepath.Join(cfg.Report.OutputDir, fmt.Sprintf("%s_%s_summary.csv", filePrefix(f.input), strategy))
		}
		return writeOutput(out, func(w io.Writer) error {
			_, err := w.Write(resp.Body)
			return err
		})
	}

	if mr == nil || mr.Result == nil {
		return errors.New("server reply carried no result")
	}
	mr.Result.Strategy = strategy
	res := &service.Result{RunID: mr.RunID, File: mr.File, Match: mr.Result}
	if werr := emit(cfg, f, report.New(cfg.Report.Precision), format, res); werr != nil {
		return werr
	}
	return err
}

func emit(cfg *store.Config, f *flags, rw *report.Writer, format report.Format, res *service.Result) error {
	switch format {
	case report.FormatJSON:
		return writeOutput(f.output, func(w io.Writer) error { return writeJSON(w, res) })
	case report.FormatCSV:
		dir := f.output
		if dir == "" {
			dir = cfg.Report.OutputDir
		}
		paths, err := rw.WriteFiles(dir, filePrefix(f.input), res.Match)
		for _, p := range paths {
			fmt.Printf("Wrote %s\n", p)
		}
		return err
	default:
		return writeOutput(f.output, func(w io.Writer) error { return rw.WriteText(w, res.Match) })
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOutput writes to path, or stdout when path is empty.
func writeOutput(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(os.Stdout)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
