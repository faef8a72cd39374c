package coordinator

import "errors"

// nonFatal reports whether an error returned by runPhase should let the
// analysis continue rather than abort it. runPhase only ever returns a
// non-nil error when every cognitive style of one agent failed; that is
// an AgentError (spec.md §7: "logged, phase continues"), never the
// PersistenceError that actually aborts a phase. Persistence failures
// surface separately, from commitArtifacts/commitMappings/gateway calls,
// which callers still check unconditionally.
func nonFatal(err error) bool {
	var ae *AgentError
	return errors.As(err, &ae)
}

// commitArtifacts stages and atomically commits one PhaseTxn holding
// every item in items, keyed by idFunc(item). A nil/empty items commits
// nothing and returns immediately — phases that produced zero items
// (e.g. a loss_dependency phase run on a single loss) are a no-op, not
// an error.
func commitArtifacts[T any](c *Coordinator, analysisID, kind string, items []T, idFunc func(T) string) error {
	if len(items) == 0 {
		return nil
	}
	txn := c.gw.BeginPhase()
	for _, item := range items {
		txn.InsertArtifact(analysisID, kind, idFunc(item), item)
	}
	return txn.Commit()
}

// commitMappings is commitArtifacts's counterpart for two-endpoint
// cross-reference records (spec.md's *Mapping types), keyed by the pair
// of identifiers aFunc/bFunc extract.
func commitMappings[T any](c *Coordinator, analysisID, kind string, items []T, aFunc, bFunc func(T) string) error {
	if len(items) == 0 {
		return nil
	}
	txn := c.gw.BeginPhase()
	for _, item := range items {
		txn.InsertMapping(analysisID, kind, aFunc(item), bFunc(item), item)
	}
	return txn.Commit()
}
