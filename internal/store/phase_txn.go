package store

import (
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"
)

// PhaseTxn batches the artifact/mapping writes of a single coordinator
// phase into one BadgerDB transaction, so they either all commit at
// phase end or the phase fails as a unit (spec.md §4.6, §4.7 "Failure
// handling").
type PhaseTxn struct {
	gw   *Gateway
	txn  *badger.Txn
	errs []error
}

// BeginPhase opens a new phase-scoped transaction.
func (g *Gateway) BeginPhase() *PhaseTxn {
	return &PhaseTxn{gw: g, txn: g.db.NewTransaction(true)}
}

// InsertArtifact stages an artifact write. Marshal errors are
// accumulated and surfaced by Commit rather than panicking mid-phase.
func (p *PhaseTxn) InsertArtifact(analysisID, kind, id string, record any) {
	raw, err := json.Marshal(record)
	if err != nil {
		p.errs = append(p.errs, err)
		return
	}
	if err := p.txn.Set(artifactKey(analysisID, kind, id), raw); err != nil {
		p.errs = append(p.errs, err)
	}
}

// InsertMapping stages a mapping write (e.g. HazardLossMapping).
func (p *PhaseTxn) InsertMapping(analysisID, kind, aID, bID string, props any) {
	raw, err := json.Marshal(props)
	if err != nil {
		p.errs = append(p.errs, err)
		return
	}
	if err := p.txn.Set(mappingKey(analysisID, kind, aID, bID), raw); err != nil {
		p.errs = append(p.errs, err)
	}
}

// InsertDependency records that each id in `dependents` depends on `(kind, id)`,
// for C11's impact() adjacency.
func (p *PhaseTxn) InsertDependency(analysisID, kind, id string, dependents []string) {
	raw, err := json.Marshal(dependents)
	if err != nil {
		p.errs = append(p.errs, err)
		return
	}
	if err := p.txn.Set(dependencyKey(analysisID, kind, id), raw); err != nil {
		p.errs = append(p.errs, err)
	}
}

// Commit applies every staged write atomically. If any stage operation
// failed, or the underlying commit fails, the whole batch is discarded
// and a PersistenceError is returned — no partial writes are visible.
func (p *PhaseTxn) Commit() error {
	if len(p.errs) > 0 {
		p.txn.Discard()
		return &PersistenceError{Op: "phase_commit", Cause: p.errs[0]}
	}
	if err := p.txn.Commit(); err != nil {
		return &PersistenceError{Op: "phase_commit", Cause: err}
	}
	return nil
}

// Discard abandons every staged write without applying any of them.
func (p *PhaseTxn) Discard() {
	p.txn.Discard()
}
