// Package batch saves many solver outputs described by a YAML manifest.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/odeviz/internal/coordinator"
)

// decodeWorkers bounds concurrent result-file reads.
const decodeWorkers = 4

// Manifest lists solver outputs to archive.
type Manifest struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Entries     []Entry `yaml:"entries"`
}

// Entry describes one solver output file and the problem that produced it.
type Entry struct {
	Results           string         `yaml:"results"`
	EquationType      string         `yaml:"equation_type"`
	Params            map[string]any `yaml:"params"`
	InitialConditions []float64      `yaml:"initial_conditions"`
	TRange            []float64      `yaml:"t_range"`
	Name              string         `yaml:"name"`
	Tags              []string       `yaml:"tags"`
	Description       string         `yaml:"description"`
}

// Outcome reports what happened to one entry.
type Outcome struct {
	Entry int
	Name  string
	ID    int64
	Err   error
}

// Saver is the part of the coordinator a batch needs.
type Saver interface {
	SaveCurrentSimulation(ctx coordinator.SimulationContext, name string, tags []string, description string) (int64, error)
}

// LoadManifest loads a manifest from a YAML file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}

// Run decodes every entry's result file concurrently, then saves them in
// manifest order. A failing entry is reported in its Outcome and does not
// stop the rest. Relative result paths are resolved against baseDir.
func Run(ctx context.Context, m *Manifest, baseDir string, saver Saver) ([]Outcome, error) {
	results := make([]map[string]any, len(m.Entries))
	decodeErrs := make([]error, len(m.Entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(decodeWorkers)
	for i, e := range m.Entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], decodeErrs[i] = readResults(resolve(baseDir, e.Results))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(m.Entries))
	for i, e := range m.Entries {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		out := Outcome{Entry: i + 1, Name: e.Name}
		if decodeErrs[i] != nil {
			out.Err = fmt.Errorf("entry %d: %w", i+1, decodeErrs[i])
			outcomes = append(outcomes, out)
			continue
		}

		snap, err := e.snapshot(results[i])
		if err != nil {
			out.Err = fmt.Errorf("entry %d: %w", i+1, err)
			outcomes = append(outcomes, out)
			continue
		}

		out.ID, out.Err = saver.SaveCurrentSimulation(snap, e.Name, e.Tags, e.Description)
		if out.Err != nil {
			out.Err = fmt.Errorf("entry %d: %w", i+1, out.Err)
		}
		outcomes = append(outcomes, out)
	}

	return outcomes, nil
}

func (e Entry) snapshot(result map[string]any) (*coordinator.Snapshot, error) {
	start, end := 0.0, 10.0
	switch len(e.TRange) {
	case 0:
	case 2:
		start, end = e.TRange[0], e.TRange[1]
	default:
		return nil, fmt.Errorf("t_range needs 2 values, got %d", len(e.TRange))
	}

	return &coordinator.Snapshot{
		Type:     e.EquationType,
		Controls: e.Params,
		Initial:  e.InitialConditions,
		Start:    start,
		End:      end,
		Result:   result,
	}, nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func readResults(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode %s: not a result object", path)
	}
	return doc, nil
}
