// WAFLens - WAF log severity classification and reporting
//
// This tool supports two deployment modes:
//
//  1. ONE-SHOT MODE (reporting):
//     waflens -logs ./captures -formats console,json -output ./reports
//
//  2. SERVER MODE (dashboard):
//     waflens -serve -config waflens.yaml
//
// Log specs accept a single file, a glob pattern, or a directory of
// .json / .json.gz / .json.zst captures.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/exploopio/waflens/pkg/audit"
	"github.com/exploopio/waflens/pkg/cache"
	"github.com/exploopio/waflens/pkg/classify"
	"github.com/exploopio/waflens/pkg/core"
	"github.com/exploopio/waflens/pkg/enrichers/attck"
	"github.com/exploopio/waflens/pkg/enrichers/vulndb"
	"github.com/exploopio/waflens/pkg/health"
	"github.com/exploopio/waflens/pkg/mapping"
	"github.com/exploopio/waflens/pkg/metrics"
	"github.com/exploopio/waflens/pkg/report"
	"github.com/exploopio/waflens/pkg/riskmeta"
	"github.com/exploopio/waflens/pkg/server"
	"github.com/exploopio/waflens/pkg/traffic"
)

const (
	appName    = "waflens"
	appVersion = "1.0.0"
)

// Config represents the tool configuration.
type Config struct {
	// Server settings (server mode)
	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// Log source
	Logs struct {
		Spec string `yaml:"spec"` // file, glob, or directory
	} `yaml:"logs"`

	// Severity mapping profiles
	Mappings struct {
		Path             string `yaml:"path"`
		PrimaryProfile   string `yaml:"primary_profile"`
		SecondaryProfile string `yaml:"secondary_profile"`
	} `yaml:"mappings"`

	// Per-technique risk metadata
	Risk struct {
		Path string `yaml:"path"`
	} `yaml:"risk"`

	// Asset criticality weights by hostname
	Assets map[string]float64 `yaml:"assets"`

	// Hostname to business identity
	Identities map[string]string `yaml:"identities"`

	// Tenant whitelist; empty means every observed host is reported
	Tenants struct {
		Whitelist []string `yaml:"whitelist"`
	} `yaml:"tenants"`

	// External score enrichers
	Enrichers struct {
		ATTCK  EnricherConfig `yaml:"attck"`
		VulnDB EnricherConfig `yaml:"vulndb"`
	} `yaml:"enrichers"`

	// Enrichment score cache
	Cache struct {
		Path string        `yaml:"path"` // empty disables persistence
		TTL  time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	// Audit trail
	Audit struct {
		LogFile string `yaml:"log_file"`
	} `yaml:"audit"`

	// Report generation (one-shot mode)
	Report struct {
		Formats   []string `yaml:"formats"` // console, json, html, pdf
		OutputDir string   `yaml:"output_dir"`
	} `yaml:"report"`

	Verbose bool `yaml:"verbose"`
}

// EnricherConfig configures one external score source.
type EnricherConfig struct {
	Endpoint  string        `yaml:"endpoint"` // empty disables the enricher
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config file")
	logSpec := flag.String("logs", "", "Log file, glob, or directory (or WAFLENS_LOGS env)")
	serve := flag.Bool("serve", false, "Run the dashboard server")
	addr := flag.String("addr", "", "Server listen address (or WAFLENS_ADDR env)")
	formats := flag.String("formats", "", "Comma-separated report formats (console, json, html, pdf)")
	outputDir := flag.String("output", "", "Report output directory")
	mappingPath := flag.String("mappings", "", "Severity mapping file")
	riskPath := flag.String("risk", "", "Risk metadata file")
	primaryProfile := flag.String("primary-profile", "", "Primary mapping profile name")
	secondaryProfile := flag.String("secondary-profile", "", "Secondary mapping profile name")
	verbose := flag.Bool("verbose", false, "Verbose output")
	listTechniques := flag.Bool("list-techniques", false, "List built-in detection signatures")
	showVersion := flag.Bool("version", false, "Show version")

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	if *listTechniques {
		catalog := traffic.DefaultCatalog(nil)
		fmt.Println("Built-in detection signatures:")
		fmt.Println()
		for _, id := range catalog.TechniqueIDs() {
			fmt.Printf("  %-12s %-28s OWASP %s\n", id, catalog.Label(id), catalog.OWASP(id))
		}
		os.Exit(0)
	}

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	// Load config, then let flags and env override
	var cfg Config
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	applyOverrides(&cfg, overrides{
		logSpec:          getEnvOrFlag(*logSpec, "WAFLENS_LOGS"),
		addr:             getEnvOrFlag(*addr, "WAFLENS_ADDR"),
		formats:          *formats,
		outputDir:        *outputDir,
		mappingPath:      *mappingPath,
		riskPath:         *riskPath,
		primaryProfile:   *primaryProfile,
		secondaryProfile: *secondaryProfile,
		verbose:          *verbose,
	})

	if err := validateConfig(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -logs, WAFLENS_LOGS, or logs.spec in the config file to set the log source.\n")
		os.Exit(1)
	}

	log := core.LoggerFromVerbose(appName, cfg.Verbose)

	collector, err := metrics.NewPrometheusCollector()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up metrics: %v\n", err)
		os.Exit(1)
	}

	auditLog, err := audit.NewLogger(&audit.LoggerConfig{
		LogFile: cfg.Audit.LogFile,
		Verbose: cfg.Verbose,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up audit log: %v\n", err)
		os.Exit(1)
	}
	auditLog.Start()
	defer auditLog.Stop()

	eng, err := buildEngine(&cfg, log, collector, auditLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.close()

	if *serve {
		err = runServe(ctx, &cfg, eng, log, collector, auditLog)
	} else {
		err = runOnce(ctx, &cfg, eng, collector, auditLog)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getEnvOrFlag(flagVal, envName string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envName)
}

func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables in config
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	return nil
}

// overrides carries the flag and env values that win over file config.
type overrides struct {
	logSpec          string
	addr             string
	formats          string
	outputDir        string
	mappingPath      string
	riskPath         string
	primaryProfile   string
	secondaryProfile string
	verbose          bool
}

func applyOverrides(cfg *Config, o overrides) {
	if o.logSpec != "" {
		cfg.Logs.Spec = o.logSpec
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.formats != "" {
		cfg.Report.Formats = nil
		for _, f := range strings.Split(o.formats, ",") {
			if f = strings.TrimSpace(f); f != "" {
				cfg.Report.Formats = append(cfg.Report.Formats, f)
			}
		}
	}
	if o.outputDir != "" {
		cfg.Report.OutputDir = o.outputDir
	}
	if o.mappingPath != "" {
		cfg.Mappings.Path = o.mappingPath
	}
	if o.riskPath != "" {
		cfg.Risk.Path = o.riskPath
	}
	if o.primaryProfile != "" {
		cfg.Mappings.PrimaryProfile = o.primaryProfile
	}
	if o.secondaryProfile != "" {
		cfg.Mappings.SecondaryProfile = o.secondaryProfile
	}
	if o.verbose {
		cfg.Verbose = true
	}

	// Defaults
	if cfg.Mappings.PrimaryProfile == "" {
		cfg.Mappings.PrimaryProfile = "scanner"
	}
	if cfg.Mappings.SecondaryProfile == "" {
		cfg.Mappings.SecondaryProfile = "cvss"
	}
	if len(cfg.Report.Formats) == 0 {
		cfg.Report.Formats = []string{"console"}
	}
	if cfg.Report.OutputDir == "" {
		cfg.Report.OutputDir = "."
	}
}

func validateConfig(cfg *Config) error {
	v := core.NewValidator()
	v.Required("logs.spec", cfg.Logs.Spec)
	v.FileExists("mappings.path", cfg.Mappings.Path)
	v.FileExists("risk.path", cfg.Risk.Path)
	v.URL("enrichers.attck.endpoint", cfg.Enrichers.ATTCK.Endpoint)
	v.URL("enrichers.vulndb.endpoint", cfg.Enrichers.VulnDB.Endpoint)
	for _, format := range cfg.Report.Formats {
		v.OneOf("report.formats", format, []string{"console", "json", "html", "pdf"})
	}
	for host, weight := range cfg.Assets {
		v.MinFloat(fmt.Sprintf("assets.%s", host), weight, 1.0)
	}
	return v.Validate()
}

// =============================================================================
// Engine assembly
// =============================================================================

// engine bundles the wired pipeline components.
type engine struct {
	loader     *traffic.Loader
	builder    *report.Builder
	scoreCache *cache.Store
}

func (e *engine) close() {
	if e.scoreCache != nil {
		e.scoreCache.Close()
	}
}

func buildEngine(cfg *Config, log core.Logger, collector metrics.Collector, auditLog *audit.Logger) (*engine, error) {
	eng := &engine{
		loader: traffic.NewLoader(
			traffic.WithLoaderLogger(log),
			traffic.WithLoaderMetrics(collector),
		),
	}

	var primary, secondary *mapping.Profile
	if cfg.Mappings.Path != "" {
		store := mapping.Load(cfg.Mappings.Path, log)
		primary = store.Profile(cfg.Mappings.PrimaryProfile)
		secondary = store.Profile(cfg.Mappings.SecondaryProfile)
	}

	opts := []classify.Option{
		classify.WithMetrics(collector),
		classify.WithAssetCriticality(classify.NewCriticality(cfg.Assets)),
	}
	if cfg.Risk.Path != "" {
		opts = append(opts, classify.WithRiskMetadata(riskmeta.Load(cfg.Risk.Path, log)))
	}

	if cfg.Cache.Path != "" {
		cacheOpts := []cache.Option{cache.WithLogger(log)}
		if cfg.Cache.TTL > 0 {
			cacheOpts = append(cacheOpts, cache.WithTTL(cfg.Cache.TTL))
		}
		store, err := cache.Open(cfg.Cache.Path, cacheOpts...)
		if err != nil {
			return nil, fmt.Errorf("open score cache: %w", err)
		}
		eng.scoreCache = store
	}

	// External CVSS scores feed the secondary resolution path.
	if cfg.Enrichers.VulnDB.Endpoint != "" {
		e := vulndb.NewEnricher(vulndb.Config{
			Endpoint:  cfg.Enrichers.VulnDB.Endpoint,
			Timeout:   cfg.Enrichers.VulnDB.Timeout,
			RateLimit: cfg.Enrichers.VulnDB.RateLimit,
			Logger:    log,
			Collector: collector,
			OnError:   auditLog.EnrichFailed,
		})
		fn := e.ScoreFunc()
		if eng.scoreCache != nil {
			fn = eng.scoreCache.Wrap("vulndb", fn)
		}
		opts = append(opts, classify.WithCVSSLookup(fn))
	}

	// Technique impact scores sharpen the risk heuristic.
	if cfg.Enrichers.ATTCK.Endpoint != "" {
		e := attck.NewEnricher(attck.Config{
			Endpoint:  cfg.Enrichers.ATTCK.Endpoint,
			Timeout:   cfg.Enrichers.ATTCK.Timeout,
			RateLimit: cfg.Enrichers.ATTCK.RateLimit,
			Logger:    log,
			Collector: collector,
			OnError:   auditLog.EnrichFailed,
		})
		fn := e.ScoreFunc()
		if eng.scoreCache != nil {
			fn = eng.scoreCache.Wrap("attck", fn)
		}
		opts = append(opts, classify.WithImpactLookup(fn))
	}

	classifier := classify.New(primary, secondary, opts...)
	analyzer := traffic.NewAnalyzer(nil, traffic.WithMetrics(collector))

	eng.builder = report.NewBuilder(analyzer, classifier,
		report.WithIdentities(traffic.NewIdentityMap(cfg.Identities)),
		report.WithTenantWhitelist(cfg.Tenants.Whitelist),
	)
	return eng, nil
}

// =============================================================================
// One-shot mode
// =============================================================================

func runOnce(ctx context.Context, cfg *Config, eng *engine, collector metrics.Collector, auditLog *audit.Logger) error {
	start := time.Now()
	auditLog.RunStarted(cfg.Logs.Spec)

	entries, err := eng.loader.LoadEntries(cfg.Logs.Spec)
	if err != nil {
		auditLog.RunFailed(err)
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	payload := eng.builder.Build(entries)
	auditLog.AnalyzeCompleted(len(entries), payload.TotalAttacks, len(payload.Techniques), time.Since(start))

	distribution := make(map[string]int, len(payload.Severity.Labels))
	for i, label := range payload.Severity.Labels {
		distribution[label] = payload.Severity.Values[i]
	}
	auditLog.ClassifySummary(distribution)

	writer := report.NewWriter(collector)
	for _, format := range cfg.Report.Formats {
		path, err := writeReport(writer, format, cfg.Report.OutputDir, payload)
		if err != nil {
			auditLog.Log(audit.Event{
				Type:     audit.EventReportFailed,
				Severity: audit.SeverityError,
				Message:  fmt.Sprintf("%s report failed", format),
				Error:    err.Error(),
			})
			return fmt.Errorf("write %s report: %w", format, err)
		}
		if path != "" {
			auditLog.ReportGenerated(format, path)
			fmt.Printf("Report written: %s\n", path)
		}
	}

	auditLog.RunCompleted(time.Since(start))
	return nil
}

// writeReport emits one report format. Console output goes to stdout and
// returns an empty path.
func writeReport(w *report.Writer, format, dir string, p *report.Payload) (string, error) {
	switch format {
	case "console":
		return "", report.WriteConsole(os.Stdout, p)
	case "json":
		path := filepath.Join(dir, "waflens-report.json")
		return path, w.WriteJSON(path, p)
	case "html":
		path := filepath.Join(dir, "waflens-report.html")
		return path, w.WriteHTML(path, p)
	case "pdf":
		path := filepath.Join(dir, "waflens-report.pdf")
		return path, w.WritePDF(path, p)
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}

// =============================================================================
// Server mode
// =============================================================================

func runServe(ctx context.Context, cfg *Config, eng *engine, log core.Logger, collector metrics.Collector, auditLog *audit.Logger) error {
	checks := health.NewHandler(health.WithVersion(appVersion))
	checks.Register("log_source", &health.LogSourceCheck{
		Resolve: traffic.ResolveFiles,
		Spec:    cfg.Logs.Spec,
	})
	checks.Register("system_memory", &health.SystemMemoryCheck{MaxUsagePercent: 90})
	checks.Register("runtime", &health.RuntimeCheck{})
	if eng.scoreCache != nil {
		checks.Register("database", &health.DatabaseCheck{PingFunc: eng.scoreCache.Ping})
	}

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		LogSpec:         cfg.Logs.Spec,
		Loader:          eng.loader,
		Builder:         eng.builder,
		Logger:          log,
		Collector:       collector,
		Health:          checks,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	auditLog.ServerStarted(cfg.Server.Addr)
	defer auditLog.ServerStopped()

	return srv.Start(ctx)
}
