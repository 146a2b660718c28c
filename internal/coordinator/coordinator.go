// Package coordinator is the single access point through which the UI layer
// reaches the simulation archive.
//
// A Coordinator is built once by the program's composition root and handed
// to whatever needs it; it adapts the UI's current problem context into
// archive records and passes queries through.
package coordinator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/san-kum/odeviz/internal/archive"
	"github.com/san-kum/odeviz/internal/config"
	"github.com/san-kum/odeviz/internal/equation"
)

// ErrNoSolution indicates a save was requested before anything was solved.
var ErrNoSolution = errors.New("coordinator: no computed solution to save")

// SimulationContext is the UI's view of the problem currently on screen.
type SimulationContext interface {
	EquationType() string
	// ControlValues maps parameter control names to their current values,
	// numbers or text as the widgets hold them.
	ControlValues() map[string]any
	InitialConditions() []float64
	TimeRange() (start, end float64)
	// Solution returns the last solver result. A nil or empty result means
	// nothing was computed.
	Solution() map[string]any
}

// Display is a record reshaped for the UI.
type Display struct {
	Metadata archive.RecordMetadata
	Results  archive.Document
}

type Coordinator struct {
	store       *archive.Store
	logger      *zap.Logger
	recentLimit int
}

// New wraps an open store.
func New(store *archive.Store, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:       store,
		logger:      logger.Named("coordinator"),
		recentLimit: config.DefaultRecentLimit,
	}
}

// Open resolves the archive file under root per cfg, creates its directory
// and opens the store.
func Open(cfg *config.Config, root string, logger *zap.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := cfg.DBPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := archive.Open(path, archive.WithLogger(logger.Named("archive")))
	c := New(store, logger)
	if cfg.RecentLimit > 0 {
		c.recentLimit = cfg.RecentLimit
	}
	return c, nil
}

// LoadReport exposes how the archive was initialized.
func (c *Coordinator) LoadReport() archive.LoadReport {
	return c.store.LoadReport()
}

// SaveCurrentSimulation stores the context's solution under name.
func (c *Coordinator) SaveCurrentSimulation(ctx SimulationContext, name string, tags []string, description string) (int64, error) {
	if ctx == nil {
		return 0, ErrNoSolution
	}
	solution := ctx.Solution()
	if len(solution) == 0 {
		return 0, ErrNoSolution
	}

	eqType := ctx.EquationType()
	params, err := equation.Parameters(eqType, ctx.ControlValues())
	if err != nil {
		return 0, fmt.Errorf("collect %s parameters: %w", eqType, err)
	}
	start, end := ctx.TimeRange()

	id, err := c.store.Save(archive.Simulation{
		EquationType:      eqType,
		Parameters:        params,
		InitialConditions: ctx.InitialConditions(),
		TimeRange:         [2]float64{start, end},
		Results:           solution,
		Name:              name,
		Tags:              tags,
		Description:       description,
	})
	if err != nil {
		c.logger.Warn("save failed", zap.String("equation_type", eqType), zap.Error(err))
		return 0, err
	}

	c.logger.Debug("saved current simulation",
		zap.Int64("id", id),
		zap.Int("total", c.store.Statistics().TotalSimulations))
	return id, nil
}

// LoadForDisplay fetches a record's metadata and results.
func (c *Coordinator) LoadForDisplay(id int64) (*Display, error) {
	rec, err := c.store.Get(id)
	if err != nil {
		return nil, err
	}
	return &Display{Metadata: rec.Metadata, Results: rec.Results}, nil
}

// Recent lists the newest records first. A non-positive limit uses the
// configured default.
func (c *Coordinator) Recent(limit int) []archive.Summary {
	if limit <= 0 {
		limit = c.recentLimit
	}
	return c.store.List(archive.ListOptions{
		Limit:      limit,
		SortBy:     archive.SortByCreatedAt,
		Descending: true,
	})
}

func (c *Coordinator) List(opts archive.ListOptions) []archive.Summary {
	return c.store.List(opts)
}

func (c *Coordinator) Search(eqType, text string, tags []string) []archive.Summary {
	return c.store.Search(archive.SearchQuery{
		EquationType: eqType,
		NameContains: text,
		Tags:         tags,
	})
}

func (c *Coordinator) Tags() []archive.TagCount {
	return c.store.Tags()
}

// TagNames returns every tag once, sorted.
func (c *Coordinator) TagNames() []string {
	counts := c.store.Tags()
	names := make([]string, len(counts))
	for i, t := range counts {
		names[i] = t.Name
	}
	sort.Strings(names)
	return names
}

func (c *Coordinator) Statistics() archive.Statistics {
	return c.store.Statistics()
}

func (c *Coordinator) ExportToFile(id int64, path string) error {
	return c.store.Export(id, path)
}

func (c *Coordinator) ImportFromFile(path string) (int64, error) {
	return c.store.Import(path)
}

func (c *Coordinator) Delete(id int64) error {
	return c.store.Delete(id)
}

func (c *Coordinator) Close() error {
	return c.store.Close()
}
