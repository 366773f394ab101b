package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"shapemap/internal/storage"
	smapi "shapemap/pkg/shapemap"
)

var stdout io.Writer = os.Stdout

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "derive":
		return runDerive(ctx, args[1:])
	case "eval":
		return runEval(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "archive-info":
		return runArchiveInfo(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind    *string
	dbPath  *string
	verbose *bool
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:    fs.String("store", "sqlite", "store backend: memory|sqlite"),
		dbPath:  fs.String("db-path", storage.DefaultSQLitePath, "sqlite database path"),
		verbose: fs.Bool("verbose", false, "enable debug logging"),
	}
}

func (f storeFlags) open(ctx context.Context) (*smapi.Client, *zap.Logger, error) {
	logger, err := newLogger(*f.verbose)
	if err != nil {
		return nil, nil, err
	}
	client, err := smapi.New(smapi.Options{StoreKind: *f.kind, DBPath: *f.dbPath, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, logger, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

func runDerive(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	store := addStoreFlags(fs)
	configPath := fs.String("config", "", "domain config file")
	runID := fs.String("run-id", "", "run identifier (generated when empty)")
	jsonOut := fs.Bool("json", false, "emit summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("derive requires --config")
	}

	client, logger, err := store.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
		_ = logger.Sync()
	}()

	summary, err := client.Derive(ctx, smapi.DeriveRequest{ConfigPath: *configPath, RunID: *runID})
	if err != nil {
		return err
	}
	if *jsonOut {
		type mapItem struct {
			Name       string    `json:"name"`
			Kind       string    `json:"kind"`
			Components int       `json:"components"`
			Initial    []float64 `json:"initial"`
		}
		out := struct {
			RunID          string    `json:"run_id"`
			InitialTime    float64   `json:"initial_time"`
			ExpirationTime string    `json:"expiration_time"`
			Maps           []mapItem `json:"maps"`
		}{RunID: summary.RunID, InitialTime: summary.InitialTime, ExpirationTime: formatTime(summary.ExpirationTime)}
		for _, m := range summary.Maps {
			out.Maps = append(out.Maps, mapItem{Name: m.Name, Kind: m.Kind, Components: m.Components, Initial: m.Initial})
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(stdout, "run_id=%s initial_time=%g expiration_time=%s\n",
		summary.RunID, summary.InitialTime, formatTime(summary.ExpirationTime))
	for _, m := range summary.Maps {
		fmt.Fprintf(stdout, "map=%s kind=%s components=%d initial_l0=%.12g\n", m.Name, m.Kind, m.Components, m.Initial[0])
	}
	return nil
}

func runEval(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run identifier")
	name := fs.String("name", "", "function of time name, e.g. ShapeMapA or SizeA")
	t := fs.Float64("time", 0, "evaluation time")
	derivs := fs.Int("derivs", 0, "number of time derivatives: 0, 1 or 2")
	jsonOut := fs.Bool("json", false, "emit values as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" || *name == "" {
		return errors.New("eval requires --run-id and --name")
	}

	client, logger, err := store.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
		_ = logger.Sync()
	}()

	eval, err := client.Evaluate(ctx, smapi.EvaluateRequest{RunID: *runID, Name: *name, Time: *t, Derivs: *derivs})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Name   string      `json:"name"`
			Time   float64     `json:"time"`
			Values [][]float64 `json:"values"`
		}{eval.Name, eval.Time, eval.Values})
	}
	for i, v := range eval.Values {
		fmt.Fprintf(stdout, "name=%s time=%g deriv=%d values=%s\n", eval.Name, eval.Time, i, formatValues(v))
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	store := addStoreFlags(fs)
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, logger, err := store.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
		_ = logger.Sync()
	}()

	runs, err := client.Runs(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		return json.NewEncoder(stdout).Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, id := range runs {
		fmt.Fprintf(stdout, "run_id=%s\n", id)
	}
	return nil
}

func runArchiveInfo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("archive-info", flag.ContinueOnError)
	path := fs.String("path", "", "surface archive file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" && fs.NArg() == 1 {
		*path = fs.Arg(0)
	}
	if *path == "" {
		return errors.New("archive-info requires --path")
	}

	info, err := smapi.InspectArchive(ctx, *path)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "archive=%s size=%s subfiles=%d\n", info.Path, humanize.Bytes(uint64(info.Bytes)), len(info.Subfiles))
	for _, s := range info.Subfiles {
		fmt.Fprintf(stdout, "subfile=%s columns=%d rows=%s times=[%s, %s]\n",
			s.Name, s.Columns, humanize.Comma(int64(s.Rows)), formatTime(s.FirstTime), formatTime(s.LastTime))
	}
	return nil
}

func formatTime(t float64) string {
	switch {
	case math.IsInf(t, 1):
		return "Auto"
	case math.IsNaN(t):
		return "n/a"
	}
	return strconv.FormatFloat(t, 'g', -1, 64)
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', 12, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: shapemapctl <derive|eval|runs|archive-info> [flags]", msg)
}
