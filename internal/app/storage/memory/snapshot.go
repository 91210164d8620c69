package memory

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
)

const classField = "__class__"

// timestamp layouts accepted when reading a snapshot. Files written by older
// tooling carry microsecond timestamps without a zone.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func snapshotKey(e rental.Entity) string {
	return string(e.Kind()) + "." + e.Meta().ID
}

// encodeSnapshot renders objects as a single JSON document keyed by
// "<Kind>.<id>".
func encodeSnapshot(objects map[rental.Kind]map[string]rental.Entity) ([]byte, error) {
	doc := make(map[string]map[string]any)
	for _, byID := range objects {
		for _, e := range byID {
			raw, err := json.Marshal(e)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", snapshotKey(e), err)
			}
			fields := make(map[string]any)
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, fmt.Errorf("encode %s: %w", snapshotKey(e), err)
			}
			fields[classField] = string(e.Kind())
			doc[snapshotKey(e)] = fields
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// skipped describes an object that was ignored while decoding.
type skipped struct {
	Key    string
	Reason string
}

// decodeSnapshot parses a snapshot document. Objects with an unknown class
// or malformed body are reported in the second return value and left out.
func decodeSnapshot(data []byte) (map[rental.Kind]map[string]rental.Entity, []skipped, error) {
	objects := emptyObjects()
	if len(bytes.TrimSpace(data)) == 0 {
		return objects, nil, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}

	var skips []skipped
	for key, raw := range doc {
		prefix, id, _ := strings.Cut(key, ".")
		class := gjson.GetBytes(raw, classField).String()
		if class == "" {
			class = prefix
		}
		kind := rental.Kind(class)
		e := rental.NewOf(kind)
		if e == nil {
			skips = append(skips, skipped{Key: key, Reason: "unknown class " + class})
			continue
		}
		normalized, err := normalizeTimes(raw)
		if err != nil {
			skips = append(skips, skipped{Key: key, Reason: err.Error()})
			continue
		}
		if err := json.Unmarshal(normalized, e); err != nil {
			skips = append(skips, skipped{Key: key, Reason: err.Error()})
			continue
		}
		if e.Meta().ID == "" {
			e.Meta().ID = id
		}
		if e.Meta().ID == "" {
			skips = append(skips, skipped{Key: key, Reason: "missing id"})
			continue
		}
		objects[kind][e.Meta().ID] = e
	}
	return objects, skips, nil
}

// normalizeTimes rewrites created_at/updated_at into RFC 3339 so they decode
// into time.Time regardless of which layout produced them.
func normalizeTimes(raw json.RawMessage) ([]byte, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, classField)
	for _, name := range []string{"created_at", "updated_at"} {
		v, ok := fields[name].(string)
		if !ok {
			continue
		}
		ts, err := parseTime(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		fields[name] = ts.Format(time.RFC3339Nano)
	}
	return json.Marshal(fields)
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}

func isGzip(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// readFile returns the snapshot bytes at path. A missing file yields nil.
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if isGzip(path) {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}
	return io.ReadAll(r)
}

// writeFile replaces path atomically: the data goes to a temporary file in
// the same directory which is synced and renamed over the target.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if isGzip(path) {
		zw := gzip.NewWriter(tmp)
		if _, err := zw.Write(data); err != nil {
			cleanup()
			return err
		}
		if err := zw.Close(); err != nil {
			cleanup()
			return err
		}
	} else if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func emptyObjects() map[rental.Kind]map[string]rental.Entity {
	objects := make(map[rental.Kind]map[string]rental.Entity, len(rental.Kinds()))
	for _, k := range rental.Kinds() {
		objects[k] = make(map[string]rental.Entity)
	}
	return objects
}
