package archive

import "time"

// timestampLayout matches the ISO-8601 text written by earlier versions of
// the archive (local time, microseconds, no zone).
const timestampLayout = "2006-01-02T15:04:05.000000"

// Document is a schema-less JSON object. Solver results and equation
// parameters are stored as documents because the archive never interprets
// their shape beyond the series it summarizes.
type Document = map[string]any

// Record is one persisted simulation.
type Record struct {
	ID       int64          `json:"id"`
	Metadata RecordMetadata `json:"metadata"`
	Results  Document       `json:"results"`
	SavedAt  string         `json:"saved_at"`
}

// RecordMetadata describes a record and caches its summary statistics.
type RecordMetadata struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	CreatedAt         string     `json:"created_at"`
	EquationType      string     `json:"equation_type"`
	Parameters        Document   `json:"parameters"`
	InitialConditions []float64  `json:"initial_conditions"`
	TimeRange         [2]float64 `json:"t_range"`
	PointsCount       int        `json:"points_count"`
	Amplitude         float64    `json:"amplitude"`
	MaxValue          float64    `json:"max_value"`
	MinValue          float64    `json:"min_value"`
	Tags              []string   `json:"tags"`
	Description       string     `json:"description"`
}

// StoreMetadata is the collection-wide bookkeeping persisted next to the records.
type StoreMetadata struct {
	CreatedAt        string `json:"created_at"`
	LastID           int64  `json:"last_id"`
	TotalSimulations int    `json:"total_simulations"`
	UpdatedAt        string `json:"updated_at"`
}

// collection is the on-disk document.
type collection struct {
	Simulations []Record      `json:"simulations"`
	Metadata    StoreMetadata `json:"metadata"`
}

// Simulation is the caller-supplied input to [Store.Save].
type Simulation struct {
	EquationType      string
	Parameters        Document
	InitialConditions []float64
	TimeRange         [2]float64
	Results           Document
	Name              string
	Tags              []string
	Description       string
}

// Summary is the listing projection of a record.
type Summary struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	CreatedAt    string   `json:"created_at"`
	EquationType string   `json:"equation_type"`
	PointsCount  int      `json:"points_count"`
	Amplitude    float64  `json:"amplitude"`
	Tags         []string `json:"tags"`
	Description  string   `json:"description"`
}

// TagCount pairs a tag with the number of records carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newCollection(now time.Time) *collection {
	ts := now.Format(timestampLayout)
	return &collection{
		Simulations: []Record{},
		Metadata: StoreMetadata{
			CreatedAt: ts,
			UpdatedAt: ts,
		},
	}
}

func (r *Record) summary() Summary {
	m := r.Metadata
	return Summary{
		ID:           m.ID,
		Name:         m.Name,
		CreatedAt:    m.CreatedAt,
		EquationType: m.EquationType,
		PointsCount:  m.PointsCount,
		Amplitude:    m.Amplitude,
		Tags:         append([]string{}, m.Tags...),
		Description:  m.Description,
	}
}

func (r *Record) hasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range r.Metadata.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// clone returns a deep copy so callers cannot mutate the in-memory collection.
func (r *Record) clone() *Record {
	c := *r
	c.Metadata.Parameters = cloneDocument(r.Metadata.Parameters)
	c.Metadata.InitialConditions = cloneSlice(r.Metadata.InitialConditions)
	c.Metadata.Tags = cloneSlice(r.Metadata.Tags)
	c.Results = cloneDocument(r.Results)
	return &c
}

func (c *collection) snapshot() collection {
	return collection{
		Simulations: append([]Record(nil), c.Simulations...),
		Metadata:    c.Metadata,
	}
}

func cloneDocument(d Document) Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneDocument(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []float64:
		return cloneSlice(t)
	case []string:
		return cloneSlice(t)
	default:
		return v
	}
}

// cloneSlice keeps the nil/empty distinction so copies compare equal to
// freshly decoded records.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
