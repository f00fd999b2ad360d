package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
)

// appEnv carries what the Before hook prepares for the commands.
type appEnv struct {
	cfg    Config
	logger *slog.Logger
	tables *ReferenceTables
	format string
}

func (e *appEnv) locator() *Locator {
	return NewLocator(e.cfg.Geofabrik.BaseURL, e.tables)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			if msg := err.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(exitErr.ExitCode())
		}
		log.Fatal(err)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	env := &appEnv{}

	selectionFlags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "region",
			Aliases: []string{"r"},
			Usage:   "Include every country of a region shortcut, e.g. WAR",
		},
		&cli.StringSliceFlag{
			Name:    "continent",
			Aliases: []string{"C"},
			Usage:   "Include every country of a continent abbreviation, e.g. AF",
		},
	}

	return &cli.App{
		Name:      "osm-mirror-locator",
		Usage:     "Map ISO country codes to GeoFabrik OSM extracts and check the mirror",
		Writer:    stdout,
		ErrWriter: stderr,
		// main decides how to exit, so tests can run the app in-process.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"OSM_LOCATOR_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error (default: info)",
				EnvVars: []string{"OSM_LOCATOR_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   formatTable,
				Usage:   "Output format, table or yaml",
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "GeoFabrik mirror base URL (default: " + DefaultBaseURL + ")",
				EnvVars: []string{"GEOFABRIK_BASE_URL"},
			},
		},
		Before: func(cCtx *cli.Context) error {
			cfg, err := loadConfig(cCtx.String("config"))
			if err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
			cfg.applyGlobalFlags(cCtx)
			if err := cfg.Validate(); err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}

			format := cCtx.String("format")
			if !validFormat(format) {
				return cli.Exit(fmt.Sprintf("unknown format %q", format), exitUsage)
			}

			logger, err := newLogger(stderr, cfg.Log.Level)
			if err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}

			env.cfg = cfg
			env.logger = logger
			env.tables = LoadReferenceTables()
			env.format = format
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "Find the continent and name of country codes",
				ArgsUsage: "CODE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "table",
						Aliases: []string{"t"},
						Value:   "iso",
						Usage:   "Table to search, iso or geofabrik",
					},
				},
				Action: func(cCtx *cli.Context) error {
					return resolveAction(cCtx, env)
				},
			},
			{
				Name:      "url",
				Usage:     "Print GeoFabrik download URLs",
				ArgsUsage: "CODE...",
				Flags:     selectionFlags,
				Action: func(cCtx *cli.Context) error {
					return urlAction(cCtx, env)
				},
			},
			{
				Name:  "mismatches",
				Usage: "Report ISO and GeoFabrik naming differences and check the correction mapping",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "strict",
						Usage: "Exit with an error when a mismatch is not covered by a correction",
					},
				},
				Action: func(cCtx *cli.Context) error {
					return mismatchesAction(cCtx, env)
				},
			},
			{
				Name:      "regions",
				Usage:     "List region shortcuts",
				ArgsUsage: "[LABEL...]",
				Action: func(cCtx *cli.Context) error {
					return regionsAction(cCtx, env)
				},
			},
			{
				Name:  "continents",
				Usage: "List continent abbreviations and the country codes they collide with",
				Action: func(cCtx *cli.Context) error {
					return renderContinents(cCtx.App.Writer, env.format, env.tables)
				},
			},
			{
				Name:      "probe",
				Usage:     "Check that extracts are available on the mirror",
				ArgsUsage: "CODE...",
				Flags: append([]cli.Flag{
					&cli.DurationFlag{
						Name:  "delay",
						Usage: "Pause before every request (default: 1s)",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Timeout per request (default: 30s)",
					},
					&cli.StringFlag{
						Name:    "user-agent",
						Usage:   "User-Agent header sent to the mirror",
						EnvVars: []string{"OSM_LOCATOR_USER_AGENT"},
					},
					&cli.StringSliceFlag{
						Name:  "method",
						Usage: "HTTP methods to probe with (default: HEAD, GET)",
					},
				}, selectionFlags...),
				Action: func(cCtx *cli.Context) error {
					return probeAction(cCtx, env)
				},
			},
			{
				Name:      "download",
				Usage:     "Download extracts from the mirror",
				ArgsUsage: "CODE...",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Usage:   "Directory to save extracts (default: data/osm/pbf)",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Download even if the extract already exists",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Timeout per extract, 0 for none",
					},
					&cli.StringFlag{
						Name:    "user-agent",
						Usage:   "User-Agent header sent to the mirror",
						EnvVars: []string{"OSM_LOCATOR_USER_AGENT"},
					},
				}, selectionFlags...),
				Action: func(cCtx *cli.Context) error {
					return downloadAction(cCtx, env)
				},
			},
		},
	}
}

// selectCodes gathers the country codes named by arguments, --region and
// --continent.
func selectCodes(cCtx *cli.Context, tables *ReferenceTables) ([]string, error) {
	codes := append([]string(nil), cCtx.Args().Slice()...)

	for _, label := range cCtx.StringSlice("region") {
		members, err := tables.ExpandRegion(label)
		if err != nil {
			return nil, cli.Exit(err.Error(), exitUsage)
		}
		codes = append(codes, members...)
	}
	for _, abbr := range cCtx.StringSlice("continent") {
		members, err := tables.ExpandContinent(abbr)
		if err != nil {
			return nil, cli.Exit(err.Error(), exitUsage)
		}
		codes = append(codes, members...)
	}

	if len(codes) == 0 {
		return nil, cli.Exit("no country codes given", exitUsage)
	}
	return codes, nil
}

func resolveAction(cCtx *cli.Context, env *appEnv) error {
	if cCtx.NArg() == 0 {
		return cli.Exit("no country codes given", exitUsage)
	}

	lookup := env.tables.LookupISO
	switch cCtx.String("table") {
	case "iso":
	case "geofabrik":
		lookup = env.tables.LookupGeofabrik
	default:
		return cli.Exit(fmt.Sprintf("unknown table %q", cCtx.String("table")), exitUsage)
	}

	var errs *multierror.Error
	locs := []Location{}
	for _, code := range cCtx.Args().Slice() {
		loc, err := lookup(code)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		locs = append(locs, loc)
	}

	if err := renderLocations(cCtx.App.Writer, env.format, locs); err != nil {
		return err
	}
	if err := errs.ErrorOrNil(); err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	return nil
}

func urlAction(cCtx *cli.Context, env *appEnv) error {
	codes, err := selectCodes(cCtx, env.tables)
	if err != nil {
		return err
	}

	targets, unknown := env.locator().UniqueTargets(codes)
	if err := renderTargets(cCtx.App.Writer, env.format, targets); err != nil {
		return err
	}
	if len(unknown) > 0 {
		return cli.Exit(fmt.Sprintf("%s : %s", ErrUnknownCode, strings.Join(unknown, ", ")), exitFailure)
	}
	return nil
}

func mismatchesAction(cCtx *cli.Context, env *appEnv) error {
	rec := env.tables.Reconcile()
	if err := renderReconciliation(cCtx.App.Writer, env.format, rec); err != nil {
		return err
	}

	if !rec.Complete() {
		env.logger.Warn("correction mapping incomplete",
			"uncovered", rec.Uncovered, "invalid", rec.InvalidCorrections)
		if cCtx.Bool("strict") {
			return cli.Exit("correction mapping incomplete", exitMismatch)
		}
	}
	return nil
}

func regionsAction(cCtx *cli.Context, env *appEnv) error {
	regions := env.tables.Regions()
	if cCtx.NArg() > 0 {
		selected := make(map[string][]string)
		for _, label := range cCtx.Args().Slice() {
			members, err := env.tables.ExpandRegion(label)
			if err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
			selected[normalizeCode(label)] = members
		}
		regions = selected
	}
	return renderRegions(cCtx.App.Writer, env.format, regions)
}

func probeAction(cCtx *cli.Context, env *appEnv) error {
	codes, err := selectCodes(cCtx, env.tables)
	if err != nil {
		return err
	}

	pc := env.cfg.Probe
	if cCtx.IsSet("delay") {
		pc.Delay = Duration(cCtx.Duration("delay"))
	}
	if cCtx.IsSet("timeout") {
		pc.Timeout = Duration(cCtx.Duration("timeout"))
	}
	if cCtx.IsSet("user-agent") {
		pc.UserAgent = cCtx.String("user-agent")
	}
	if cCtx.IsSet("method") {
		pc.Methods = cCtx.StringSlice("method")
	}
	probeCfg := env.cfg
	probeCfg.Probe = pc
	if err := probeCfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	prober := NewProber(env.locator(),
		WithHTTPClient(newHTTPClient(time.Duration(pc.Timeout))),
		WithDelay(time.Duration(pc.Delay)),
		WithMethods(pc.Methods...),
		WithUserAgent(pc.UserAgent),
		WithLogger(env.logger),
	)

	report := prober.ProbeAll(cCtx.Context, codes)
	if err := renderProbeReport(cCtx.App.Writer, env.format, report); err != nil {
		return err
	}

	if report.HasProblems() {
		env.logger.Error("problems found",
			"codes", report.ProblemCodes, "urls", len(report.ProblemURLs))
		return cli.Exit(fmt.Sprintf("%d problem code(s): %s",
			len(report.ProblemCodes), strings.Join(report.ProblemCodes, ", ")), exitProblems)
	}
	return nil
}

func downloadAction(cCtx *cli.Context, env *appEnv) error {
	codes, err := selectCodes(cCtx, env.tables)
	if err != nil {
		return err
	}

	dc := env.cfg.Download
	if cCtx.IsSet("output-dir") {
		dc.OutputDir = cCtx.String("output-dir")
	}
	if cCtx.IsSet("timeout") {
		dc.Timeout = Duration(cCtx.Duration("timeout"))
	}
	if cCtx.IsSet("user-agent") {
		dc.UserAgent = cCtx.String("user-agent")
	}
	if dc.OutputDir == "" {
		return cli.Exit("no output directory given", exitUsage)
	}
	if dc.Timeout < 0 {
		return cli.Exit(fmt.Sprintf("%s: negative timeout", ErrInvalidConfig), exitUsage)
	}

	d := &Downloader{
		Client:    newHTTPClient(time.Duration(dc.Timeout)),
		Locator:   env.locator(),
		UserAgent: dc.UserAgent,
		Logger:    env.logger,
		Force:     cCtx.Bool("force"),
	}

	paths, err := d.DownloadAll(cCtx.Context, codes, dc.OutputDir)
	for _, p := range paths {
		fmt.Fprintln(cCtx.App.Writer, p)
	}
	if err != nil {
		if isRateLimited(err) {
			env.logger.Warn("mirror rate limited some downloads, retry later")
		}
		return cli.Exit(err.Error(), exitFailure)
	}
	return nil
}
