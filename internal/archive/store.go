package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LoadStatus tells how a store obtained its initial collection.
type LoadStatus int

const (
	// LoadFresh means no backing file existed.
	LoadFresh LoadStatus = iota
	// LoadLoaded means the backing file was decoded.
	LoadLoaded
	// LoadRecovered means the backing file was unreadable and the store started empty.
	LoadRecovered
)

func (s LoadStatus) String() string {
	switch s {
	case LoadFresh:
		return "fresh"
	case LoadLoaded:
		return "loaded"
	case LoadRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// LoadReport describes the outcome of reading the backing file at Open.
type LoadReport struct {
	Status LoadStatus
	// Reason is set when Status is LoadRecovered.
	Reason error
	// Quarantine is where the unreadable file was moved, if anywhere.
	Quarantine string
}

// Store owns the backing file and the in-memory collection.
type Store struct {
	mu     sync.Mutex
	path   string
	data   *collection
	report LoadReport
	closed bool
	// dirty is set while the in-memory collection differs from the file.
	dirty bool

	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load and persistence diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for timestamps and generated names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open constructs a store backed by path. It never fails: a missing or
// unreadable file leaves the store empty, and LoadReport says which.
func Open(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("path", path))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		s.logger.Warn("create archive directory", zap.Error(err))
	}

	c, repaired, err := loadCollection(path)
	switch {
	case err == nil:
		s.data = c
		s.report = LoadReport{Status: LoadLoaded}
		s.dirty = repaired
	case errors.Is(err, os.ErrNotExist):
		s.data = newCollection(s.now())
		s.report = LoadReport{Status: LoadFresh}
		s.dirty = true
	default:
		s.data = newCollection(s.now())
		s.dirty = true
		s.report = LoadReport{Status: LoadRecovered, Reason: err}
		s.report.Quarantine = s.quarantine()
		s.logger.Warn("archive unreadable, starting empty",
			zap.Error(err),
			zap.String("quarantine", s.report.Quarantine))
	}

	s.logger.Info("archive opened",
		zap.Stringer("status", s.report.Status),
		zap.Int("records", len(s.data.Simulations)),
		zap.Int64("last_id", s.data.Metadata.LastID))
	return s
}

// quarantine moves an unreadable backing file aside so the next write does
// not destroy it. It returns the new location, or "" if the move failed.
func (s *Store) quarantine() string {
	dst := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().Format("20060102T150405"))
	if err := os.Rename(s.path, dst); err != nil {
		s.logger.Warn("quarantine unreadable archive", zap.Error(err))
		return ""
	}
	return dst
}

// LoadReport returns how the initial collection was obtained.
func (s *Store) LoadReport() LoadReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Save appends a new record and durably persists the collection. On a failed
// write the collection is restored, so last_id does not advance and the next
// successful save receives the same id.
func (s *Store) Save(sim Simulation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	results, err := normalize(sim.Results)
	if err != nil {
		return 0, fmt.Errorf("%w: results not encodable: %v", ErrPersist, err)
	}
	params, err := normalize(sim.Parameters)
	if err != nil {
		return 0, fmt.Errorf("%w: parameters not encodable: %v", ErrPersist, err)
	}

	now := s.now()
	ts := now.Format(timestampLayout)
	id := s.data.Metadata.LastID + 1

	name := sim.Name
	if name == "" {
		name = fmt.Sprintf("Sim_%d_%s", id, now.Format("150405"))
	}

	stats := ComputeStats(results)
	rec := Record{
		ID: id,
		Metadata: RecordMetadata{
			ID:                id,
			Name:              name,
			CreatedAt:         ts,
			EquationType:      sim.EquationType,
			Parameters:        params,
			InitialConditions: append([]float64{}, sim.InitialConditions...),
			TimeRange:         sim.TimeRange,
			PointsCount:       stats.PointsCount,
			Amplitude:         stats.Amplitude,
			MaxValue:          stats.MaxValue,
			MinValue:          stats.MinValue,
			Tags:              append([]string{}, sim.Tags...),
			Description:       sim.Description,
		},
		Results: results,
		SavedAt: ts,
	}

	prev := s.data.snapshot()
	s.data.Simulations = append(s.data.Simulations, rec)
	s.data.Metadata = StoreMetadata{
		CreatedAt:        prev.Metadata.CreatedAt,
		LastID:           id,
		TotalSimulations: len(s.data.Simulations),
		UpdatedAt:        ts,
	}

	if err := s.persist(); err != nil {
		s.data.Simulations = prev.Simulations
		s.data.Metadata = prev.Metadata
		s.logger.Error("save rolled back", zap.Int64("id", id), zap.Error(err))
		return 0, err
	}

	s.logger.Info("simulation saved",
		zap.Int64("id", id),
		zap.String("name", name),
		zap.String("equation_type", sim.EquationType),
		zap.Int("points", stats.PointsCount))
	return id, nil
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return s.data.Simulations[i].clone(), nil
}

// Delete removes the record with the given id and persists the collection.
// If the write fails the record is restored in memory as well.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	prev := s.data.snapshot()
	kept := make([]Record, 0, len(s.data.Simulations)-1)
	kept = append(kept, s.data.Simulations[:i]...)
	kept = append(kept, s.data.Simulations[i+1:]...)
	s.data.Simulations = kept
	s.data.Metadata.TotalSimulations = len(kept)
	s.data.Metadata.UpdatedAt = s.now().Format(timestampLayout)

	if err := s.persist(); err != nil {
		s.data.Simulations = prev.Simulations
		s.data.Metadata = prev.Metadata
		s.logger.Error("delete rolled back", zap.Int64("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("simulation deleted", zap.Int64("id", id))
	return nil
}

// Close writes the collection if the backing file does not hold it yet (a
// fresh, recovered or repaired collection) and rejects further calls. A
// store that only served reads leaves the file untouched.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if !s.dirty {
		return nil
	}
	return s.persist()
}

// persist must be called with mu held.
func (s *Store) persist() error {
	if err := writeFileDurable(s.path, s.data); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.dirty = false
	return nil
}

func (s *Store) indexOf(id int64) int {
	for i := range s.data.Simulations {
		if s.data.Simulations[i].ID == id {
			return i
		}
	}
	return -1
}
