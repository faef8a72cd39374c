// Draft/Version Store (spec.md C11): per-user working drafts
// accumulate JSON-patch-style edits over a committed base; commit
// materializes them into a new immutable Version and writes them
// through to the live artifact rows, atomically.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// DraftState is Draft.state.
type DraftState string

const (
	DraftWorking   DraftState = "working"
	DraftCommitted DraftState = "committed"
)

// Edit is one accumulated change to a single artifact within a draft.
type Edit struct {
	Changes  map[string]any `json:"changes"`
	Freeze   bool           `json:"freeze"`
	EditedAt time.Time      `json:"edited_at"`
}

// Draft is a per-(analysis, user) working set of uncommitted edits.
type Draft struct {
	ID         string                      `json:"id"`
	AnalysisID string                      `json:"analysis_id"`
	UserID     string                      `json:"user_id"`
	State      DraftState                  `json:"state"`
	Edits      map[string]map[string]*Edit `json:"edits"` // kind -> id -> edit
	VersionID  string                      `json:"version_id,omitempty"`
}

// Version is a committed, immutable snapshot.
type Version struct {
	AnalysisID        string    `json:"analysis_id"`
	VersionNumber      int       `json:"version_number"`
	CommitMessage     string    `json:"commit_message"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	StateSnapshot     json.RawMessage `json:"state_snapshot"`
	UserModifications []FieldDiff     `json:"user_modifications"`
}

// FieldDiff is one rendered unified-diff hunk contributed by a commit,
// used for human review of what a draft changed.
type FieldDiff struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Diff string `json:"diff"`
}

// ImpactSeverity classifies how disruptive editing an artifact is.
type ImpactSeverity string

const (
	ImpactHigh   ImpactSeverity = "high"
	ImpactMedium ImpactSeverity = "medium"
	ImpactLow    ImpactSeverity = "low"
)

// Impact is the result of impact(kind, id).
type Impact struct {
	Kind       string
	ID         string
	Dependents []string
	Severity   ImpactSeverity
}

// DraftConflict is returned by Commit when the draft is already committed.
type DraftConflict struct {
	DraftID string
}

func (e *DraftConflict) Error() string {
	return fmt.Sprintf("store: draft %s already committed", e.DraftID)
}

func draftIDFor(analysisID, userID string) string {
	return analysisID + ":" + userID
}

// GetOrCreateDraft returns the caller's existing working draft for an
// analysis, or creates a fresh one. At most one working draft exists
// per (analysis_id, user_id): a prior committed draft under the same
// id is never reused, a new one is started instead.
func (g *Gateway) GetOrCreateDraft(analysisID, userID string) (Draft, error) {
	id := draftIDFor(analysisID, userID)
	var d Draft
	err := g.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(draftKey(analysisID, userID))
		if err == nil {
			if getErr := item.Value(func(val []byte) error { return json.Unmarshal(val, &d) }); getErr != nil {
				return getErr
			}
			if d.State == DraftWorking {
				return nil
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		d = Draft{
			ID:         id,
			AnalysisID: analysisID,
			UserID:     userID,
			State:      DraftWorking,
			Edits:      map[string]map[string]*Edit{},
		}
		raw, merr := json.Marshal(d)
		if merr != nil {
			return merr
		}
		return txn.Set(draftKey(analysisID, userID), raw)
	})
	if err != nil {
		return Draft{}, &PersistenceError{Op: "get_or_create_draft", Cause: err}
	}
	return d, nil
}

// AccumulateEdit merges a change into the draft's working edit set,
// keyed by artifact kind and id. Later edits to the same (kind, id)
// overwrite earlier ones within the same draft.
func (g *Gateway) AccumulateEdit(analysisID, userID, kind, id string, changes map[string]any, freeze bool) error {
	err := g.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(draftKey(analysisID, userID))
		if err != nil {
			return err
		}
		var d Draft
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &d) }); err != nil {
			return err
		}
		if d.State != DraftWorking {
			return &DraftConflict{DraftID: d.ID}
		}
		if d.Edits == nil {
			d.Edits = map[string]map[string]*Edit{}
		}
		if d.Edits[kind] == nil {
			d.Edits[kind] = map[string]*Edit{}
		}
		d.Edits[kind][id] = &Edit{Changes: changes, Freeze: freeze, EditedAt: time.Now()}
		raw, err := json.Marshal(d)
		if err != nil {
			return err
		}
		return txn.Set(draftKey(analysisID, userID), raw)
	})
	if err != nil {
		return &PersistenceError{Op: "accumulate_edit", Cause: err}
	}
	return nil
}

// Impact reports the artifacts that depend on (kind, id), via the
// element_dependencies adjacency populated alongside artifact writes.
func (g *Gateway) Impact(analysisID, kind, id string) (Impact, error) {
	var dependents []string
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dependencyKey(analysisID, kind, id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &dependents) })
	})
	if err != nil {
		return Impact{}, &PersistenceError{Op: "impact", Cause: err}
	}
	severity := ImpactLow
	switch {
	case len(dependents) > 5:
		severity = ImpactHigh
	case len(dependents) >= 1:
		severity = ImpactMedium
	}
	return Impact{Kind: kind, ID: id, Dependents: dependents, Severity: severity}, nil
}

// latestVersionNumber returns the highest committed version_number for
// an analysis, or 0 if none exist yet.
func (g *Gateway) latestVersionNumber(txn *badger.Txn, analysisID string) (int, error) {
	max := 0
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	prefix := versionPrefix(analysisID)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var v Version
		err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &v) })
		if err != nil {
			return 0, err
		}
		if v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max, nil
}

// Commit applies a working draft's edits to the live artifact rows and
// records an immutable Version, all within one BadgerDB transaction:
// either every edit lands and the version is recorded, or the commit
// fails and the base tables are left untouched (spec.md §4.11
// "Commit is atomic").
func (g *Gateway) Commit(analysisID, userID, commitMessage, committedBy string) (Version, error) {
	var version Version
	err := g.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(draftKey(analysisID, userID))
		if err != nil {
			return err
		}
		var d Draft
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &d) }); err != nil {
			return err
		}
		if d.State != DraftWorking {
			return &DraftConflict{DraftID: d.ID}
		}

		var diffs []FieldDiff
		for kind, byID := range d.Edits {
			ids := sortedKeys(byID)
			for _, id := range ids {
				edit := byID[id]
				itemArtifact, err := txn.Get(artifactKey(analysisID, kind, id))
				if err != nil {
					return err
				}
				var before map[string]json.RawMessage
				if err := itemArtifact.Value(func(val []byte) error { return json.Unmarshal(val, &before) }); err != nil {
					return err
				}
				beforeRaw, _ := json.Marshal(before)
				after := make(map[string]json.RawMessage, len(before))
				for k, v := range before {
					after[k] = v
				}
				for field, newVal := range edit.Changes {
					encoded, err := json.Marshal(newVal)
					if err != nil {
						return err
					}
					after[field] = encoded
				}
				afterRaw, err := json.Marshal(after)
				if err != nil {
					return err
				}
				if err := txn.Set(artifactKey(analysisID, kind, id), afterRaw); err != nil {
					return err
				}
				fd, derr := renderUnifiedDiff(kind+"/"+id, string(beforeRaw), string(afterRaw))
				if derr != nil {
					return derr
				}
				diffs = append(diffs, FieldDiff{Kind: kind, ID: id, Diff: fd})
			}
		}

		maxVersion, err := g.latestVersionNumber(txn, analysisID)
		if err != nil {
			return err
		}
		snapshot, err := json.Marshal(d.Edits)
		if err != nil {
			return err
		}
		version = Version{
			AnalysisID:        analysisID,
			VersionNumber:      maxVersion + 1,
			CommitMessage:     commitMessage,
			CreatedBy:         committedBy,
			CreatedAt:         time.Now(),
			StateSnapshot:     snapshot,
			UserModifications: diffs,
		}
		versionRaw, err := json.Marshal(version)
		if err != nil {
			return err
		}
		if err := txn.Set(versionKey(analysisID, version.VersionNumber), versionRaw); err != nil {
			return err
		}

		d.State = DraftCommitted
		d.VersionID = fmt.Sprintf("%s/%010d", analysisID, version.VersionNumber)
		draftRaw, err := json.Marshal(d)
		if err != nil {
			return err
		}
		return txn.Set(draftKey(analysisID, userID), draftRaw)
	})
	if err != nil {
		return Version{}, &PersistenceError{Op: "commit", Cause: err}
	}
	return version, nil
}

// FetchVersion returns a specific committed version, so callers can
// re-read artifacts as of a prior version rather than the live rows.
func (g *Gateway) FetchVersion(analysisID string, versionNumber int) (Version, error) {
	var v Version
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(versionKey(analysisID, versionNumber))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &v) })
	})
	if err != nil {
		return Version{}, &PersistenceError{Op: "fetch_version", Cause: err}
	}
	return v, nil
}

// InsertLoadedVersion records a committed Version for an analysis that
// was populated directly from a pre-baked result rather than through
// the normal draft/commit path (spec.md §9 Open Questions: a loaded
// demo analysis is treated as a committed version). Version has no type
// field; such a version is marked only by its commit message, "loaded
// from demo". There is no prior draft to apply, so this
// writes the version row only; the caller has already inserted the
// analysis's artifact rows directly.
func (g *Gateway) InsertLoadedVersion(analysisID, createdBy string, stateSnapshot json.RawMessage) (Version, error) {
	var version Version
	err := g.db.Update(func(txn *badger.Txn) error {
		maxVersion, err := g.latestVersionNumber(txn, analysisID)
		if err != nil {
			return err
		}
		version = Version{
			AnalysisID:    analysisID,
			VersionNumber: maxVersion + 1,
			CommitMessage: "loaded from demo",
			CreatedBy:     createdBy,
			CreatedAt:     time.Now(),
			StateSnapshot: stateSnapshot,
		}
		raw, err := json.Marshal(version)
		if err != nil {
			return err
		}
		return txn.Set(versionKey(analysisID, version.VersionNumber), raw)
	})
	if err != nil {
		return Version{}, &PersistenceError{Op: "insert_loaded_version", Cause: err}
	}
	return version, nil
}

func sortedKeys(m map[string]*Edit) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
