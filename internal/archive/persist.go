package archive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const tempSuffix = ".tmp"

// maxExactInt is the largest integer magnitude a float64 holds exactly.
const maxExactInt = 1 << 53

// writeFileDurable replaces path with the indented JSON encoding of v.
//
// The bytes go to path+".tmp" first and are fsynced before the temp file is
// renamed over path, so a crash leaves either the old or the new document
// and never a truncated one.
func writeFileDurable(path string, v any) (err error) {
	tmpPath := path + tempSuffix

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			if _, statErr := os.Stat(tmpPath); statErr == nil {
				os.Remove(tmpPath)
			}
		}
	}()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err = enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	syncDir(filepath.Dir(path))

	if _, err = os.Stat(path); err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	return nil
}

// syncDir makes the rename itself durable where the platform allows
// opening a directory; failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}

// loadCollection decodes the backing file. A missing file is reported as
// an error wrapping os.ErrNotExist. repaired is true when the metadata had to
// be corrected, meaning the file no longer matches the collection.
func loadCollection(path string) (c *collection, repaired bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}

	c = &collection{}
	if err := decodeJSON(data, c); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}
	if c.Simulations == nil {
		return nil, false, errors.New("decode: document has no simulations list")
	}

	// last_id must stay ahead of every stored id even if the metadata
	// block was edited or truncated by hand.
	meta := c.Metadata
	for i := range c.Simulations {
		r := &c.Simulations[i]
		if r.ID > c.Metadata.LastID {
			c.Metadata.LastID = r.ID
		}
		r.Results = fixNumbers(r.Results)
		r.Metadata.Parameters = fixNumbers(r.Metadata.Parameters)
	}
	c.Metadata.TotalSimulations = len(c.Simulations)
	return c, c.Metadata != meta, nil
}

// normalize gives a document the shape it will have after a reload, so the
// in-memory copy of a fresh record equals the persisted one.
func normalize(d Document) (Document, error) {
	if d == nil {
		return Document{}, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out Document
	if err := decodeJSON(data, &out); err != nil {
		return nil, err
	}
	return fixNumbers(out), nil
}

// decodeJSON is json.Unmarshal with numbers in schema-less values kept as
// json.Number, so fixNumbers can decide how to hold them.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

// fixNumbers turns json.Number values into float64 wherever that is
// lossless. Integers beyond 2^53 stay json.Number so they are written back
// digit for digit.
func fixNumbers(d Document) Document {
	if d == nil {
		return nil
	}
	for k, v := range d {
		d[k] = fixValue(v)
	}
	return d
}

func fixValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		return numberValue(t)
	case map[string]any:
		return fixNumbers(t)
	case []any:
		for i, e := range t {
			t[i] = fixValue(e)
		}
		return t
	default:
		return v
	}
}

func numberValue(n json.Number) any {
	if !strings.ContainsAny(n.String(), ".eE") {
		i, err := n.Int64()
		if err != nil || i > maxExactInt || i < -maxExactInt {
			return n
		}
		return float64(i)
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n
}
