// Package robovac turns raw datapoint payloads ("DPS") reported by a robot
// vacuum into typed snapshots, and describes what each vacuum model can do.
//
// A DPS payload is a key-indexed map whose keys and value encodings differ
// between hardware generations. The per-model capability table (models.yaml,
// embedded) records which key carries which field, how status and fault
// values map to codes, and which payloads each command sends.
//
// Decoding never fails. A field whose key is missing or whose value has the
// wrong type is reported as unknown and logged at debug level; the other
// fields are unaffected.
//
//	model, err := robovac.DefaultCatalogue().Lookup("T2278")
//	if err != nil {
//	    return err
//	}
//	snap := robovac.NewDecoder(model, logger).Decode(payload)
package robovac
