package robovac

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"strings"
)

// Logger is the logging interface used by the decoder.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Decoder turns raw payloads into snapshots for one model.
// It is stateless and safe for concurrent use.
type Decoder struct {
	model  *Model
	logger Logger
}

// NewDecoder creates a decoder for model. A nil logger discards diagnostics.
func NewDecoder(model *Model, logger Logger) *Decoder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Decoder{model: model, logger: logger}
}

// Model returns the model the decoder was built for.
func (d *Decoder) Model() *Model {
	return d.model
}

// Decode maps a payload to a snapshot. It never fails: each field the model
// maps is parsed on its own, and a missing or malformed value leaves only
// that field unknown. Keys the model does not map are ignored.
func (d *Decoder) Decode(raw RawPayload) Snapshot {
	var snap Snapshot

	if v, ok := d.field(raw, FieldBattery); ok {
		if n, ok := v.Integer(); ok {
			snap.Battery = ptr(clampPercent(n))
		} else {
			d.skip(FieldBattery, "expected integer, got "+v.Kind().String())
		}
	}

	if v, ok := d.field(raw, FieldStatus); ok {
		d.decodeStatus(v, &snap)
	}

	if v, ok := d.field(raw, FieldError); ok {
		d.decodeFault(v, &snap)
	}

	if s, ok := d.str(raw, FieldMode); ok {
		snap.Mode = ptr(ModeName(s))
	}
	if s, ok := d.str(raw, FieldFanSpeed); ok && s != "" {
		snap.FanSpeed = ptr(FriendlyText(s))
	}
	snap.Locating = d.boolean(raw, FieldLocating)

	if d.gated(FieldCleaningArea) {
		snap.CleaningArea = d.integer(raw, FieldCleaningArea)
	}
	if d.gated(FieldCleaningTime) {
		snap.CleaningTime = d.integer(raw, FieldCleaningTime)
	}
	if d.gated(FieldAutoReturn) {
		snap.AutoReturn = d.boolean(raw, FieldAutoReturn)
	}
	if d.gated(FieldDoNotDisturb) {
		snap.DoNotDisturb = d.boolean(raw, FieldDoNotDisturb)
	}
	if d.gated(FieldBoostIQ) {
		snap.BoostIQ = d.boolean(raw, FieldBoostIQ)
	}
	if d.gated(FieldConsumables) {
		if s, ok := d.str(raw, FieldConsumables); ok {
			snap.Consumables = d.decodeConsumables(s)
		}
	}

	snap.Activity = DeriveActivity(snap.StatusCode, snap.ErrorCode)
	return snap
}

// field fetches the value for f. ok is false when the model does not map
// f or the key is absent; absence is logged.
func (d *Decoder) field(raw RawPayload, f Field) (Value, bool) {
	key, mapped := d.model.Key(f)
	if !mapped {
		return Value{}, false
	}
	rv, present := raw[key]
	if !present {
		d.logger.Debug("decode field skipped", "dps", key, "field", string(f), "reason", "missing")
		return Value{}, false
	}
	v := ValueOf(rv)
	if !v.Known() {
		d.skip(f, "unsupported type "+describe(rv))
		return Value{}, false
	}
	return v, true
}

func (d *Decoder) str(raw RawPayload, f Field) (string, bool) {
	v, ok := d.field(raw, f)
	if !ok {
		return "", false
	}
	s, ok := v.AsStr()
	if !ok {
		d.skip(f, "expected string, got "+v.Kind().String())
	}
	return s, ok
}

func (d *Decoder) boolean(raw RawPayload, f Field) *bool {
	v, ok := d.field(raw, f)
	if !ok {
		return nil
	}
	b, ok := v.AsBool()
	if !ok {
		d.skip(f, "expected bool, got "+v.Kind().String())
		return nil
	}
	return &b
}

func (d *Decoder) integer(raw RawPayload, f Field) *int {
	v, ok := d.field(raw, f)
	if !ok {
		return nil
	}
	n, ok := v.Integer()
	if !ok || n < 0 || n > math.MaxInt32 {
		d.skip(f, "expected non-negative integer, got "+v.String())
		return nil
	}
	return ptr(int(n))
}

func (d *Decoder) gated(f Field) bool {
	feature, gated := gatedFields[f]
	return !gated || d.model.HasFeature(feature)
}

func (d *Decoder) skip(f Field, reason string) {
	key, _ := d.model.Key(f)
	err := &DecodeFieldError{Field: f, DPS: key, Reason: reason}
	d.logger.Debug("decode field skipped", "dps", err.DPS, "field", string(err.Field), "reason", err.Reason)
}

func (d *Decoder) decodeStatus(v Value, snap *Snapshot) {
	raw, ok := v.AsStr()
	if !ok {
		d.skip(FieldStatus, "expected string, got "+v.Kind().String())
		return
	}
	code, ok := d.model.StatusValues[raw]
	if !ok {
		d.skip(FieldStatus, "unrecognised status value "+v.String())
		return
	}
	text, _ := StatusText(code)
	snap.StatusCode = ptr(code)
	snap.Status = ptr(text)
}

func (d *Decoder) decodeFault(v Value, snap *Snapshot) {
	// Some firmware reports 0 for "no fault" instead of a string.
	if n, ok := v.AsInt(); ok && n == 0 {
		snap.ErrorCode = ptr(NoError)
		return
	}
	raw, ok := v.AsStr()
	if !ok {
		d.skip(FieldError, "expected string, got "+v.Kind().String())
		return
	}
	code, ok := d.model.FaultValues[raw]
	if !ok {
		d.skip(FieldError, "unrecognised error value "+v.String())
		return
	}
	snap.ErrorCode = ptr(code)
	if code != NoError {
		snap.ErrorMessage = ptr(FaultMessage(code))
	}
}

// decodeConsumables parses the base64 blob carrying
// {"consumable": {"duration": {"side_brush": <hours used>, ...}}}.
// Anything malformed yields an empty, unknown result.
func (d *Decoder) decodeConsumables(encoded string) Consumables {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		d.skip(FieldConsumables, "invalid base64: "+err.Error())
		return Consumables{}
	}

	var doc struct {
		Consumable struct {
			Duration map[string]json.Number `json:"duration"`
		} `json:"consumable"`
	}
	if err := json.Unmarshal(blob, &doc); err != nil {
		// Some firmware emits the object with single-quoted strings.
		if err2 := json.Unmarshal(singleQuotedToJSON(blob), &doc); err2 != nil {
			d.skip(FieldConsumables, "invalid document: "+err.Error())
			return Consumables{}
		}
	}
	if doc.Consumable.Duration == nil {
		d.skip(FieldConsumables, "no consumable.duration")
		return Consumables{}
	}

	remaining := make(map[string]int, len(doc.Consumable.Duration))
	for component, used := range doc.Consumable.Duration {
		lifetime, ok := d.model.ConsumableLifetimes[component]
		if !ok {
			continue
		}
		hours, err := used.Float64()
		if err != nil || hours < 0 {
			d.skip(FieldConsumables, "invalid hours for "+component)
			continue
		}
		remaining[component] = clampPercent(int64(math.Round(100 - hours*100/float64(lifetime))))
	}
	return Consumables{Known: true, Remaining: remaining}
}

func singleQuotedToJSON(b []byte) []byte {
	r := strings.NewReplacer("'", `"`, "True", "true", "False", "false", "None", "null")
	return []byte(r.Replace(string(b)))
}

func clampPercent(n int64) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	default:
		return int(n)
	}
}
