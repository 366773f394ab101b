package shapemap

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shapemap/internal/archive"
	"shapemap/internal/config"
	"shapemap/internal/fot"
	"shapemap/internal/model"
	smap "shapemap/internal/shapemap"
	"shapemap/internal/storage"
)

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *zap.Logger
	// ArchiveOpener reads surface archives. It defaults to SQLite files.
	ArchiveOpener archive.OpenFunc
}

type Client struct {
	store   storage.Store
	logger  *zap.Logger
	deriver *smap.Deriver
}

type DeriveRequest struct {
	ConfigPath string
	RunID      string
}

type MapSummary struct {
	Name       string
	Kind       string
	Components int
	Initial    []float64
}

type DeriveSummary struct {
	RunID          string
	InitialTime    float64
	ExpirationTime float64
	Maps           []MapSummary
}

type EvaluateRequest struct {
	RunID string
	Name  string
	Time  float64
	// Derivs is the number of time derivatives returned, 0 to 2.
	Derivs int
}

type Evaluation struct {
	Name   string
	Time   float64
	Values [][]float64
}

type SubfileInfo struct {
	Name      string
	Columns   int
	Rows      int
	FirstTime float64
	LastTime  float64
}

type ArchiveInfo struct {
	Path     string
	Bytes    int64
	Subfiles []SubfileInfo
}

func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewStore(opts.StoreKind, opts.DBPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:   store,
		logger:  logger,
		deriver: smap.NewDeriver(smap.WithLogger(logger), smap.WithArchiveOpener(opts.ArchiveOpener)),
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Derive builds the shape and size functions of time of every object in the
// domain config and stores them as one checkpoint.
func (c *Client) Derive(ctx context.Context, req DeriveRequest) (DeriveSummary, error) {
	if req.ConfigPath == "" {
		return DeriveSummary{}, errors.New("derive requires a config path")
	}
	domain, err := config.Load(req.ConfigPath)
	if err != nil {
		return DeriveSummary{}, err
	}
	runID := req.RunID
	if runID == "" {
		runID = "run-" + uuid.NewString()
	}

	results := make([]smap.Coefficients, len(domain.Objects))
	g, gctx := errgroup.WithContext(ctx)
	for i, object := range domain.Objects {
		i, object := i, object
		g.Go(func() error {
			coefs, err := c.deriver.Derive(gctx, object.ShapeMap, object.InnerRadius)
			if err != nil {
				return err
			}
			results[i] = coefs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DeriveSummary{}, err
	}

	summary := DeriveSummary{RunID: runID, InitialTime: domain.InitialTime, ExpirationTime: domain.ExpirationTime}
	var records []model.FunctionRecord
	for i, object := range domain.Objects {
		shape, size, err := results[i].FunctionsOfTime(domain.InitialTime, domain.ExpirationTime)
		if err != nil {
			return DeriveSummary{}, fmt.Errorf("%s: %w", object.ShapeMap.Name(), err)
		}
		for _, named := range []struct {
			name string
			f    *fot.PiecewisePolynomial
		}{
			{object.ShapeMap.Name(), shape},
			{object.ShapeMap.SizeMapName(), size},
		} {
			record, err := fot.Encode(named.name, named.f)
			if err != nil {
				return DeriveSummary{}, err
			}
			records = append(records, record)
			initial, err := named.f.Func(domain.InitialTime)
			if err != nil {
				return DeriveSummary{}, err
			}
			summary.Maps = append(summary.Maps, MapSummary{
				Name:       named.name,
				Kind:       named.f.Kind(),
				Components: len(initial[0]),
				Initial:    initial[0],
			})
		}
	}

	if err := c.store.SaveCheckpoint(ctx, storage.NewCheckpoint(runID, domain.InitialTime, records)); err != nil {
		return DeriveSummary{}, err
	}
	c.logger.Info("derived shape maps",
		zap.String("run_id", runID),
		zap.String("config", req.ConfigPath),
		zap.Int("functions", len(records)),
	)
	return summary, nil
}

// Restore decodes every function of time stored for a run.
func (c *Client) Restore(ctx context.Context, runID string) (map[string]fot.FunctionOfTime, error) {
	checkpoint, ok, err := c.store.GetCheckpoint(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	out := make(map[string]fot.FunctionOfTime, len(checkpoint.Functions))
	for _, record := range checkpoint.Functions {
		f, err := fot.Decode(record)
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", record.Name, err)
		}
		out[record.Name] = f
	}
	return out, nil
}

func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (Evaluation, error) {
	if req.Derivs < 0 || req.Derivs > 2 {
		return Evaluation{}, fmt.Errorf("derivs must be between 0 and 2, got %d", req.Derivs)
	}
	functions, err := c.Restore(ctx, req.RunID)
	if err != nil {
		return Evaluation{}, err
	}
	f, ok := functions[req.Name]
	if !ok {
		return Evaluation{}, fmt.Errorf("run %s has no function %q", req.RunID, req.Name)
	}

	var values [][]float64
	switch req.Derivs {
	case 0:
		v, err := f.Func(req.Time)
		if err != nil {
			return Evaluation{}, err
		}
		values = v[:]
	case 1:
		v, err := f.FuncAndDeriv(req.Time)
		if err != nil {
			return Evaluation{}, err
		}
		values = v[:]
	default:
		v, err := f.FuncAndTwoDerivs(req.Time)
		if err != nil {
			return Evaluation{}, err
		}
		values = v[:]
	}
	return Evaluation{Name: req.Name, Time: req.Time, Values: values}, nil
}

func (c *Client) Runs(ctx context.Context) ([]string, error) {
	return c.store.ListRuns(ctx)
}

// InspectArchive lists the subfiles of a SQLite surface archive.
func InspectArchive(ctx context.Context, path string) (ArchiveInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return ArchiveInfo{}, err
	}
	reader, err := archive.OpenSQLite(ctx, path)
	if err != nil {
		return ArchiveInfo{}, err
	}
	defer reader.Close()

	names, err := reader.Subfiles(ctx)
	if err != nil {
		return ArchiveInfo{}, err
	}
	info := ArchiveInfo{Path: path, Bytes: stat.Size()}
	for _, name := range names {
		legend, err := reader.Legend(ctx, name)
		if err != nil {
			return ArchiveInfo{}, err
		}
		rows, err := reader.Rows(ctx, name)
		if err != nil {
			return ArchiveInfo{}, err
		}
		sub := SubfileInfo{Name: name, Columns: len(legend), Rows: len(rows), FirstTime: math.NaN(), LastTime: math.NaN()}
		if len(rows) > 0 {
			sub.FirstTime = rows[0][0]
			sub.LastTime = rows[len(rows)-1][0]
		}
		info.Subfiles = append(info.Subfiles, sub)
	}
	return info, nil
}
