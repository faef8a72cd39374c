package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/stpasec/engine/internal/domain"
)

// PersistenceError is fatal for the phase in progress (spec.md §7): the
// coordinator aborts the phase and marks the analysis `error` on seeing
// one.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// Gateway is the narrow, typed persistence surface described in
// spec.md §4.6. All single-record operations are transactional per
// call; multi-record writes within a phase go through a PhaseTxn so
// they commit atomically at phase end.
type Gateway struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) a BadgerDB store at dir. Use OpenInMemory for
// ephemeral/test use.
func Open(dir string) (*Gateway, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Cause: err}
	}
	return &Gateway{db: db, logger: slog.Default()}, nil
}

// OpenInMemory opens an ephemeral, non-durable store for tests and for
// the `demo` command surface's scratch re-population (spec.md §6.2).
func OpenInMemory() (*Gateway, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, &PersistenceError{Op: "open_in_memory", Cause: err}
	}
	return &Gateway{db: db, logger: slog.Default()}, nil
}

// Close releases the underlying store.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// InsertAnalysis persists a new Analysis root record.
func (g *Gateway) InsertAnalysis(a domain.Analysis) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return &PersistenceError{Op: "insert_analysis", Cause: err}
	}
	err = g.db.Update(func(txn *badger.Txn) error {
		return txn.Set(analysisKey(a.ID), raw)
	})
	if err != nil {
		return &PersistenceError{Op: "insert_analysis", Cause: err}
	}
	return nil
}

// UpdateAnalysis overwrites the stored Analysis record (e.g. to flip
// status to error/complete/timeout, or to bump QualityScore).
func (g *Gateway) UpdateAnalysis(a domain.Analysis) error {
	return g.InsertAnalysis(a)
}

// FetchAnalysis returns the Analysis for id.
func (g *Gateway) FetchAnalysis(id string) (domain.Analysis, error) {
	var a domain.Analysis
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(analysisKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})
	if err != nil {
		return domain.Analysis{}, &PersistenceError{Op: "fetch_analysis", Cause: err}
	}
	return a, nil
}

// FetchLatestStep1ForDB returns the most recently created Step 1
// analysis, used to resolve the implicit parent of a Step 2 run that
// does not specify one explicitly (spec.md §3 Analysis.parent link).
func (g *Gateway) FetchLatestStep1ForDB() (domain.Analysis, error) {
	var candidates []domain.Analysis
	err := g.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(analysisPrefix()); it.ValidForPrefix(analysisPrefix()); it.Next() {
			var a domain.Analysis
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			})
			if err != nil {
				return err
			}
			if a.Step == domain.Step1 {
				candidates = append(candidates, a)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Analysis{}, &PersistenceError{Op: "fetch_latest_step1", Cause: err}
	}
	if len(candidates) == 0 {
		return domain.Analysis{}, &PersistenceError{Op: "fetch_latest_step1", Cause: errors.New("no step 1 analyses found")}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.After(candidates[j].CreatedAt) })
	return candidates[0], nil
}

// ListAnalyses returns every persisted Analysis root record, most
// recently created first — the backing query for the CLI's `list`
// command surface (spec.md §6.2).
func (g *Gateway) ListAnalyses() ([]domain.Analysis, error) {
	var out []domain.Analysis
	err := g.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(analysisPrefix()); it.ValidForPrefix(analysisPrefix()); it.Next() {
			var a domain.Analysis
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			})
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, &PersistenceError{Op: "list_analyses", Cause: err}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// InsertArtifact persists a single artifact of the given kind outside a
// phase transaction; used for one-off writes (e.g. the Mission, which
// is not produced inside a fan-out phase).
func (g *Gateway) InsertArtifact(analysisID, kind, id string, record any) error {
	txn := g.BeginPhase()
	txn.InsertArtifact(analysisID, kind, id, record)
	return txn.Commit()
}

// FetchArtifacts decodes every artifact of the given kind for an
// analysis into T, in key order: identifiers compare as byte strings
// (so "L-10" comes before "L-2"), and insertion order is not kept.
func FetchArtifacts[T any](g *Gateway, analysisID, kind string) ([]T, error) {
	var out []T
	prefix := artifactPrefix(analysisID, kind)
	err := g.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var v T
			err := it.Item().Value(func(val []byte) error {
				return DecodeArtifact(val, &v)
			})
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, &PersistenceError{Op: "fetch_artifacts", Cause: err}
	}
	return out, nil
}

// FetchMappings decodes every mapping of the given kind for an analysis into T.
func FetchMappings[T any](g *Gateway, analysisID, kind string) ([]T, error) {
	var out []T
	prefix := mappingPrefix(analysisID, kind)
	err := g.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var v T
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, &PersistenceError{Op: "fetch_mappings", Cause: err}
	}
	return out, nil
}
