package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/san-kum/cmbview/internal/artifact"
	"github.com/san-kum/cmbview/internal/config"
	"github.com/san-kum/cmbview/internal/export"
	"github.com/san-kum/cmbview/internal/layout"
	"github.com/san-kum/cmbview/internal/logging"
	"github.com/san-kum/cmbview/internal/metrics"
	"github.com/san-kum/cmbview/internal/param"
	"github.com/san-kum/cmbview/internal/render"
	"github.com/san-kum/cmbview/internal/session"
	"github.com/san-kum/cmbview/internal/tui"
	"github.com/san-kum/cmbview/internal/view"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	settings config.Settings
	log      = logr.Discard()
	flushLog = func() error { return nil }

	overrides []string
	output    string
	dumpPath  string
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := execute(newRootCmd()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// execute runs cmd and flushes the logger whatever the outcome. Cobra skips
// post-run hooks when RunE fails, so the flush cannot live there.
func execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	if err != nil {
		log.Error(err, "command failed")
	}
	if ferr := flushLog(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cmbview",
		Short:         "interactive CMB power spectrum explorer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Resolve(viper.New(), cmd.Flags())
			if err != nil {
				return err
			}
			settings = s
			log, flushLog, err = logging.New(logging.Options{Path: s.LogFile, Level: s.LogLevel})
			return err
		},
		RunE: runInteractive,
	}
	config.RegisterFlags(rootCmd.PersistentFlags(), config.DefaultSettings())

	fetchCmd := &cobra.Command{
		Use:   "fetch [model]",
		Short: "fetch one spectrum image",
		Args:  cobra.ExactArgs(1),
		RunE:  fetchImage,
	}
	fetchCmd.Flags().StringArrayVarP(&overrides, "set", "s", nil, "parameter override name=value (repeatable)")
	fetchCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <model> plus image extension)")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models and parameter ranges",
		RunE:  listModels,
	}
	modelsCmd.Flags().StringVar(&dumpPath, "dump", "", "write the active catalog as yaml to this path")

	layoutCmd := &cobra.Command{
		Use:   "layout [model]",
		Short: "print the slider layout of a model",
		Args:  cobra.ExactArgs(1),
		RunE:  printLayout,
	}
	layoutCmd.Flags().StringArrayVarP(&overrides, "set", "s", nil, "parameter override name=value (repeatable)")

	rootCmd.AddCommand(fetchCmd, modelsCmd, layoutCmd)
	return rootCmd
}

type app struct {
	catalog  config.Catalog
	client   *render.Client
	storage  *artifact.Storage
	registry *prometheus.Registry
	metrics  *metrics.Fetch
}

func newApp() (*app, error) {
	cat, err := settings.LoadModels()
	if err != nil {
		return nil, err
	}
	client, err := render.NewClient(settings.ServiceURL,
		render.WithTimeout(settings.Timeout),
		render.WithUserAgent("cmbview/"+version),
	)
	if err != nil {
		return nil, err
	}
	storage := artifact.NewStorage(settings.CacheDir)
	if err := storage.Init(); err != nil {
		return nil, fmt.Errorf("failed to init cache dir: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &app{
		catalog:  cat,
		client:   client,
		storage:  storage,
		registry: reg,
		metrics:  metrics.NewFetch(reg),
	}, nil
}

// serveMetrics exposes the registry until ctx is done. An empty address
// disables it.
func (rt *app) serveMetrics(ctx context.Context) {
	if settings.MetricsAddr == "" {
		return
	}
	srv := &http.Server{Addr: settings.MetricsAddr, Handler: metrics.Handler(rt.registry), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server stopped", "addr", settings.MetricsAddr)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	log.Info("serving metrics", "addr", settings.MetricsAddr)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	initial, err := view.Parse(settings.View)
	if err != nil {
		return err
	}
	rt, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rt.serveMetrics(ctx)

	s, err := session.New(rt.catalog, rt.client, rt.storage,
		session.WithLogger(log),
		session.WithMetrics(rt.metrics),
		session.WithInitialView(initial),
	)
	if err != nil {
		return err
	}
	log.Info("starting", "service", settings.ServiceURL, "cache", rt.storage.Dir(), "view", initial.String())
	return tui.RunInteractive(ctx, s, log)
}

func fetchImage(cmd *cobra.Command, args []string) error {
	name := args[0]
	rt, err := newApp()
	if err != nil {
		return err
	}
	m, ok := rt.catalog.Get(name)
	if !ok {
		return fmt.Errorf("unknown model: %s (available: %v)", name, rt.catalog.Names())
	}
	set, err := applyOverrides(m, overrides)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sy := artifact.New(name, rt.client, rt.storage,
		artifact.WithLogger(log.WithName("sync")),
		artifact.WithMetrics(rt.metrics),
	)
	defer sy.Close()

	res, err := sy.Sync(ctx, set)
	if err != nil {
		return err
	}

	out := output
	if out == "" {
		out = name + filepath.Ext(res.Path)
	}
	url := rt.client.URL(name, set)
	if err := export.Image(out, res, set, url); err != nil {
		return err
	}

	fmt.Printf("%s  %s  %d bytes\n", out, res.ContentType, res.Size)
	fmt.Printf("  %s\n", url)
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	cat, err := settings.LoadModels()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tPARAM\tDEFAULT\tMIN\tMAX\tSTEP")
	for _, m := range cat {
		if m.Parameterless() {
			fmt.Fprintf(w, "%s\t-\t\t\t\t\n", m.Name)
			continue
		}
		for i, p := range m.Params {
			label := m.Name
			if i > 0 {
				label = ""
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				label,
				p.Name,
				param.FormatValue(p.Default),
				param.FormatValue(p.Range.Min),
				param.FormatValue(p.Range.Max),
				param.FormatValue(p.Range.Step),
			)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if dumpPath != "" {
		if err := config.SaveCatalog(dumpPath, cat); err != nil {
			return err
		}
		fmt.Printf("catalog written to %s\n", dumpPath)
	}
	return nil
}

func printLayout(cmd *cobra.Command, args []string) error {
	cat, err := settings.LoadModels()
	if err != nil {
		return err
	}
	m, ok := cat.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown model: %s (available: %v)", args[0], cat.Names())
	}
	set, err := applyOverrides(m, overrides)
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s\n\n", m.Name, m.Title)
	cols := layout.ForSet(set, m.Ranges())
	if cols.Len() == 0 {
		fmt.Println("   no parameters")
		return nil
	}
	fmt.Println(tui.RenderColumns(cols, -1))
	return nil
}

// applyOverrides starts from m's defaults and applies name=value pairs.
// Values must lie inside the parameter's range.
func applyOverrides(m param.Model, pairs []string) (param.Set, error) {
	set := m.Defaults()
	ranges := m.Ranges()
	for _, kv := range pairs {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return set, fmt.Errorf("invalid override %q, want name=value", kv)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return set, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		name = strings.TrimSpace(name)
		r, known := ranges[name]
		if !known {
			return set, fmt.Errorf("unknown parameter %s for %s (have %v)", name, m.Name, set.Names())
		}
		if !r.Contains(v) {
			return set, fmt.Errorf("%s=%s outside range %s", name, param.FormatValue(v), r)
		}
		set, _ = set.With(name, v)
	}
	return set, nil
}
