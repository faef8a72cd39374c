// Package store implements the Persistence Gateway (spec.md C6) and the
// Draft/Version Store (spec.md C11) on top of a single embedded
// key-value engine, grounded on
// _examples/jinterlante1206-AleutianLocal/services/trace/agent/mcts/crs/persistence.go
// (BadgerDB-backed manager with per-call transactions).
//
// Keys are namespaced byte strings; values are JSON. The gateway never
// exposes raw keys to callers — every exported method is typed.
package store

import "fmt"

func analysisKey(id string) []byte {
	return []byte("analysis/" + id)
}

func artifactKey(analysisID, kind, id string) []byte {
	return []byte(fmt.Sprintf("artifact/%s/%s/%s", analysisID, kind, id))
}

func artifactPrefix(analysisID, kind string) []byte {
	return []byte(fmt.Sprintf("artifact/%s/%s/", analysisID, kind))
}

func mappingKey(analysisID, kind, aID, bID string) []byte {
	return []byte(fmt.Sprintf("mapping/%s/%s/%s/%s", analysisID, kind, aID, bID))
}

func mappingPrefix(analysisID, kind string) []byte {
	return []byte(fmt.Sprintf("mapping/%s/%s/", analysisID, kind))
}

func draftKey(analysisID, userID string) []byte {
	return []byte("draft/" + analysisID + "/" + userID)
}

func versionKey(analysisID string, versionNumber int) []byte {
	return []byte(fmt.Sprintf("version/%s/%010d", analysisID, versionNumber))
}

func versionPrefix(analysisID string) []byte {
	return []byte("version/" + analysisID + "/")
}

func dependencyKey(analysisID, kind, id string) []byte {
	return []byte(fmt.Sprintf("element_dependencies/%s/%s/%s", analysisID, kind, id))
}

func analysisPrefix() []byte {
	return []byte("analysis/")
}
