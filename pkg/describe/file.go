package describe

import (
	"encoding/json"
	"os"

	"github.com/pingcap/errors"

	"github.com/wireql/wireql/pkg/sqlerr"
)

var (
	ErrNotFound = sqlerr.New(sqlerr.KindConfig, "query has no offline describe metadata")

	// ErrStale means the cache file was produced against a different
	// backend or schema version. Stale metadata is a correctness risk and
	// is surfaced, never silently reused.
	ErrStale = sqlerr.New(sqlerr.KindConfig, "offline describe metadata is stale")
)

// File is the serialized offline describe cache: one backend identity,
// one optional schema version, and the metadata of every verified query
// keyed by query text hash. encoding/json sorts map keys, so an unchanged
// set of queries always serializes byte-identically.
type File struct {
	Backend       string            `json:"backend"`
	SchemaVersion string            `json:"schema_version,omitempty"`
	Queries       map[string]Result `json:"queries"`
}

func NewFile(backend, schemaVersion string) *File {
	return &File{
		Backend:       backend,
		SchemaVersion: schemaVersion,
		Queries:       make(map[string]Result),
	}
}

// Put records the metadata for the exact query text.
func (f *File) Put(query string, r Result) {
	f.Queries[QueryHash(query)] = r
}

// Lookup replays the metadata for the exact query text, verifying it was
// produced by the same backend and schema version.
func (f *File) Lookup(backend, schemaVersion, query string) (Result, error) {
	if f.Backend != backend || f.SchemaVersion != schemaVersion {
		return Result{}, errors.Annotatef(ErrStale,
			"cache is for %q schema %q, want %q schema %q",
			f.Backend, f.SchemaVersion, backend, schemaVersion)
	}
	r, ok := f.Queries[QueryHash(query)]
	if !ok {
		return Result{}, ErrNotFound
	}
	return r, nil
}

// Marshal serializes the file deterministically.
func (f *File) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, errors.Annotate(err, "marshal describe cache")
	}
	return append(data, '\n'), nil
}

// Store writes the cache file.
func (f *File) Store(path string) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Annotate(err, "write describe cache")
	}
	return nil
}

// Load reads a cache file written by Store.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sqlerr.WithKind(errors.Annotate(err, "read describe cache"), sqlerr.KindConfig)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, sqlerr.WithKind(errors.Annotate(err, "parse describe cache"), sqlerr.KindConfig)
	}
	if f.Queries == nil {
		f.Queries = make(map[string]Result)
	}
	return &f, nil
}
