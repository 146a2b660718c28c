package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// SortKey selects the ordering used by List.
type SortKey string

const (
	SortByID        SortKey = "id"
	SortByName      SortKey = "name"
	SortByCreatedAt SortKey = "created_at"
	SortByAmplitude SortKey = "amplitude"
)

// ListOptions controls List. A Limit of zero or less returns every record.
// An unrecognized SortBy falls back to SortByID.
type ListOptions struct {
	Limit      int
	SortBy     SortKey
	Descending bool
}

// SearchQuery filters Search. Empty fields match everything. Tags match a
// record that carries at least one of them.
type SearchQuery struct {
	EquationType string
	NameContains string
	Tags         []string
}

// Statistics is an informational view of the store.
type Statistics struct {
	TotalSimulations int            `json:"total_simulations"`
	LastID           int64          `json:"last_id"`
	Path             string         `json:"db_path"`
	FileExists       bool           `json:"file_exists"`
	FileSizeBytes    int64          `json:"file_size_bytes"`
	FileSize         string         `json:"db_file_size"`
	FileSizeMB       float64        `json:"file_size_mb"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
	EquationTypes    map[string]int `json:"equation_types"`
	// CompressionRatio is 1 - fileSize/rawResultsSize, or 0 when either is zero.
	CompressionRatio float64 `json:"compression_ratio"`
}

// List returns summaries ordered by opts.SortBy. Records with equal keys keep
// their insertion order in either direction. A closed store lists nothing.
func (s *Store) List(opts ListOptions) []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return []Summary{}
	}

	out := make([]Summary, 0, len(s.data.Simulations))
	for i := range s.data.Simulations {
		out = append(out, s.data.Simulations[i].summary())
	}

	less := lessFunc(opts.SortBy)
	sort.SliceStable(out, func(i, j int) bool {
		if opts.Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func lessFunc(key SortKey) func(a, b Summary) bool {
	switch key {
	case SortByName:
		return func(a, b Summary) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortByCreatedAt:
		return func(a, b Summary) bool { return a.CreatedAt < b.CreatedAt }
	case SortByAmplitude:
		return func(a, b Summary) bool { return a.Amplitude < b.Amplitude }
	default:
		return func(a, b Summary) bool { return a.ID < b.ID }
	}
}

// Search returns matching summaries in insertion order.
func (s *Store) Search(q SearchQuery) []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Summary{}
	if s.closed {
		return out
	}
	needle := strings.ToLower(q.NameContains)
	for i := range s.data.Simulations {
		r := &s.data.Simulations[i]
		if q.EquationType != "" && r.Metadata.EquationType != q.EquationType {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.Metadata.Name), needle) {
			continue
		}
		if len(q.Tags) > 0 && !r.hasAnyTag(q.Tags) {
			continue
		}
		out = append(out, r.summary())
	}
	return out
}

// Tags counts tag usage, most used first; ties keep first-encounter order.
func (s *Store) Tags() []TagCount {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []TagCount{}
	if s.closed {
		return out
	}
	index := map[string]int{}
	for i := range s.data.Simulations {
		for _, tag := range s.data.Simulations[i].Metadata.Tags {
			if j, ok := index[tag]; ok {
				out[j].Count++
				continue
			}
			index[tag] = len(out)
			out = append(out, TagCount{Name: tag, Count: 1})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Statistics reports counts, file size and an equation-type histogram. A
// closed store reports only its path.
func (s *Store) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Statistics{Path: s.path, FileSize: FormatSize(0), EquationTypes: map[string]int{}}
	}

	st := Statistics{
		TotalSimulations: len(s.data.Simulations),
		LastID:           s.data.Metadata.LastID,
		Path:             s.path,
		CreatedAt:        s.data.Metadata.CreatedAt,
		UpdatedAt:        s.data.Metadata.UpdatedAt,
		EquationTypes:    map[string]int{},
	}

	if info, err := os.Stat(s.path); err == nil {
		st.FileExists = true
		st.FileSizeBytes = info.Size()
	}
	st.FileSize = FormatSize(st.FileSizeBytes)
	st.FileSizeMB = float64(int64(float64(st.FileSizeBytes)/(1024*1024)*100+0.5)) / 100

	var raw int64
	for i := range s.data.Simulations {
		r := &s.data.Simulations[i]
		eqType := r.Metadata.EquationType
		if eqType == "" {
			eqType = "unknown"
		}
		st.EquationTypes[eqType]++

		if data, err := json.Marshal(r.Results); err == nil {
			raw += int64(len(data))
		}
	}
	if raw > 0 && st.FileSizeBytes > 0 {
		st.CompressionRatio = 1 - float64(st.FileSizeBytes)/float64(raw)
	}
	return st
}

// FormatSize renders a byte count as B, KB or MB.
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
