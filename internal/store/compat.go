package store

import (
	"encoding/json"
	"reflect"
)

// legacyEnvelope wraps an older artifact record shape that predates the
// dedicated `identifier` column: the id was folded into a free-form
// metadata map under the "identifier" key instead of living at the top
// level. Grounded on
// _examples/jinterlante1206-AleutianLocal/original_source/apps/backend/core/agents/step2_agents/db_compat.py,
// which performs the same best-effort unwrap when reading rows written
// by an older schema version.
type legacyEnvelope struct {
	Metadata map[string]json.RawMessage `json:"metadata"`
}

// DecodeArtifact unmarshals raw into dst, the C6 compatibility layer
// that keeps older artifact records (written before the `identifier`
// column existed, with the id stashed inside a metadata map) readable
// alongside current-schema records. It never guesses a missing
// identifier: if dst has no settable string ID field, or the legacy
// metadata carries none either, dst is left with whatever the direct
// decode produced.
func DecodeArtifact(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	idVal := idField(dst)
	if !idVal.IsValid() || idVal.String() != "" {
		return nil
	}
	var legacy legacyEnvelope
	if err := json.Unmarshal(raw, &legacy); err != nil || legacy.Metadata == nil {
		return nil
	}
	rawID, ok := legacy.Metadata["identifier"]
	if !ok {
		return nil
	}
	var id string
	if err := json.Unmarshal(rawID, &id); err != nil || id == "" {
		return nil
	}
	idVal.SetString(id)
	return nil
}

// idField returns the settable "ID" field of dst, the common column
// name across every artifact struct in internal/domain, or the zero
// Value if dst isn't a pointer-to-struct with one.
func idField(dst any) reflect.Value {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}
	}
	f := v.Elem().FieldByName("ID")
	if !f.IsValid() || f.Kind() != reflect.String || !f.CanSet() {
		return reflect.Value{}
	}
	return f
}
