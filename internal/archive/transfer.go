package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

const (
	importNameSuffix  = "_imported"
	importDescPrefix  = "Imported: "
	defaultImportName = "Imported"
)

// Export writes one full record, verbatim, to destination.
func (s *Store) Export(id int64, destination string) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := writeFileDurable(destination, rec); err != nil {
		return fmt.Errorf("export %d: %w", id, err)
	}
	s.logger.Info("simulation exported", zap.Int64("id", id), zap.String("destination", destination))
	return nil
}

// importedMetadata is lenient: every field may be absent.
type importedMetadata struct {
	Name              string      `json:"name"`
	EquationType      string      `json:"equation_type"`
	Parameters        Document    `json:"parameters"`
	InitialConditions []float64   `json:"initial_conditions"`
	TimeRange         *[2]float64 `json:"t_range"`
	Tags              []string    `json:"tags"`
	Description       string      `json:"description"`
}

// Import reads a record written by Export and saves it as a new record. The
// payload must contain both a metadata and a results object; otherwise
// ErrInvalidImport is returned and the store is untouched.
func (s *Store) Import(source string) (int64, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	rawMeta, hasMeta := sections["metadata"]
	rawResults, hasResults := sections["results"]
	if !hasMeta || !hasResults || !isObject(rawMeta) || !isObject(rawResults) {
		return 0, ErrInvalidImport
	}

	var meta importedMetadata
	if err := decodeJSON(rawMeta, &meta); err != nil {
		return 0, fmt.Errorf("%w: metadata: %v", ErrInvalidImport, err)
	}
	var results Document
	if err := decodeJSON(rawResults, &results); err != nil {
		return 0, fmt.Errorf("%w: results: %v", ErrInvalidImport, err)
	}

	name := meta.Name
	if name == "" {
		name = defaultImportName
	}
	tRange := [2]float64{0, 10}
	if meta.TimeRange != nil {
		tRange = *meta.TimeRange
	}

	id, err := s.Save(Simulation{
		EquationType:      meta.EquationType,
		Parameters:        meta.Parameters,
		InitialConditions: meta.InitialConditions,
		TimeRange:         tRange,
		Results:           results,
		Name:              name + importNameSuffix,
		Tags:              meta.Tags,
		Description:       importDescPrefix + meta.Description,
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("simulation imported", zap.Int64("id", id), zap.String("source", source))
	return id, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
