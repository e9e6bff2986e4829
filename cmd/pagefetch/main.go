// Command pagefetch fetches a paginated dataset and exports it as a table.
//
//	pagefetch [flags] <dataset>
//	pagefetch --list
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/pagetable/pkg/client"
	"github.com/Sternrassler/pagetable/pkg/config"
	"github.com/Sternrassler/pagetable/pkg/dataset"
	"github.com/Sternrassler/pagetable/pkg/export"
	"github.com/Sternrassler/pagetable/pkg/logging"
	"github.com/Sternrassler/pagetable/pkg/metrics"
	"github.com/Sternrassler/pagetable/pkg/monitor"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Error().Err(err).Msg("pagefetch failed")
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	catalogs    []string
	sets        []string
	pageSize    int
	pageFailure string
	rowFailure  string
	pageDelay   time.Duration
	delaySet    bool
	format      string
	out         string
	tableName   string
	list        bool
	metricsAddr string
	logLevel    string
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	o := &options{}
	fs := pflag.NewFlagSet("pagefetch", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVarP(&o.configPath, "config", "c", "", "YAML config file (PAGETABLE_* env vars override)")
	fs.StringArrayVar(&o.catalogs, "catalog", nil, "additional dataset catalog (repeatable; overrides built-ins by name)")
	fs.StringArrayVar(&o.sets, "set", nil, "query parameter override key=value (repeatable)")
	fs.IntVar(&o.pageSize, "page-size", 0, "page size override")
	fs.StringVar(&o.pageFailure, "page-failure", "", "failed page handling: fail_fast or skip")
	fs.StringVar(&o.rowFailure, "row-failure", "", "malformed row handling: fail_fast or skip")
	fs.DurationVar(&o.pageDelay, "page-delay", 0, "fixed delay between pages")
	fs.StringVarP(&o.format, "format", "f", "csv", "output format: csv, json or sqlite")
	fs.StringVarP(&o.out, "out", "o", "-", "output path (- for stdout)")
	fs.StringVar(&o.tableName, "table", "", "SQLite table name (default: dataset name)")
	fs.BoolVar(&o.list, "list", false, "list datasets and exit")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address while fetching")
	fs.StringVar(&o.logLevel, "log-level", "", "log level override: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	o.delaySet = fs.Changed("page-delay")
	return o, fs.Args(), nil
}

// pageDelay picks the delay override: an explicit flag (zero included), then a
// positive config value. Nil keeps the dataset's delay.
func pageDelay(opts *options, cfg *config.Config) *time.Duration {
	switch {
	case opts.delaySet:
		return &opts.pageDelay
	case cfg.Fetch.PageDelay > 0:
		return &cfg.Fetch.PageDelay
	default:
		return nil
	}
}

// parseSets turns key=value pairs into a parameter map.
func parseSets(sets []string) (map[string]string, error) {
	params := make(map[string]string, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q (want key=value)", s)
		}
		params[key] = value
	}
	return params, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, rest, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	logging.Setup(cfg.Logging())
	defer logging.Close()
	logger := logging.NewLogger("pagefetch")

	catalog, err := dataset.Builtin()
	if err != nil {
		return err
	}
	for _, path := range opts.catalogs {
		user, err := dataset.LoadFile(path)
		if err != nil {
			return err
		}
		catalog.Merge(user)
	}

	if opts.list {
		for _, name := range catalog.Names() {
			def, _ := catalog.Get(name)
			fmt.Fprintf(stdout, "%-40s %s\n", name, def.Description)
		}
		return nil
	}

	if len(rest) != 1 {
		return fmt.Errorf("expected exactly one dataset name (see --list)")
	}
	name := rest[0]

	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	params, err := parseSets(opts.sets)
	if err != nil {
		return err
	}

	overrides := dataset.Overrides{
		Params:     params,
		PageSize:   opts.pageSize,
		PagePolicy: firstNonEmpty(opts.pageFailure, cfg.Fetch.PageFailure),
		RowPolicy:  firstNonEmpty(opts.rowFailure, cfg.Fetch.RowFailure),
		PageDelay:  pageDelay(opts, cfg),
	}

	plan, err := catalog.Plan(name, overrides)
	if err != nil {
		return err
	}

	counter, closeCounter, err := cfg.NewCounter(ctx)
	if err != nil {
		return err
	}
	defer closeCounter()

	if client.ProxyMode(cfg.HTTP.ProxyMode) == client.ProxyEnv {
		release, err := config.AcquireProxyEnv(cfg.HTTP.Proxy)
		if err != nil {
			return err
		}
		defer release()
	}

	metricsAddr := firstNonEmpty(opts.metricsAddr, cfg.Metrics.Addr)
	if metricsAddr != "" {
		srv, err := metrics.Serve(metricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Metrics server shutdown failed")
			}
		}()
	}

	httpClient, err := client.New(cfg.Client(counter))
	if err != nil {
		return err
	}
	defer httpClient.Close()

	res, err := plan.Fetch(ctx, httpClient)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", name, err)
	}

	writer, err := export.Open(format, opts.out, stdout)
	if err != nil {
		return err
	}
	tableName := firstNonEmpty(opts.tableName, name)
	if err := writer.WriteTable(ctx, tableName, res.Table); err != nil {
		writer.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	report := res.Report
	logger.Info().
		Str("dataset", name).
		Str("fetch_id", res.ID).
		Int("total_pages", report.TotalPages).
		Int("pages_fetched", report.PagesFetched).
		Int("skipped_pages", len(report.SkippedPages)).
		Int("dropped_rows", len(report.DroppedRows)).
		Int("rows", res.Table.Len()).
		Dur("duration", report.Duration).
		Str("format", string(format)).
		Str("out", opts.out).
		Msg("Export complete")

	for _, pe := range report.SkippedPages {
		logger.Warn().Int("page", pe.Page).Err(pe.Err).Msg("Skipped page")
	}
	for version, rows := range report.SchemaVersions {
		logger.Info().Str("schema", version).Int("rows", rows).Msg("Schema version seen")
	}

	if counter != nil {
		snapshot, err := counter.Snapshot(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to read request counts")
		}
		for _, key := range monitor.SortedKeys(snapshot) {
			logger.Info().Str("endpoint", key).Int64("requests", snapshot[key]).Msg("Request count")
		}
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
