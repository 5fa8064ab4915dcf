package robovac

import (
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
)

// recordingLogger captures debug records for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []map[string]any
}

func (l *recordingLogger) Debug(msg string, args ...any) {
	entry := map[string]any{"msg": msg}
	for i := 0; i+1 < len(args); i += 2 {
		entry[fmt.Sprint(args[i])] = args[i+1]
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *recordingLogger) skipped(field Field) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e["msg"] == "decode field skipped" && e["field"] == string(field) {
			return true
		}
	}
	return false
}

func l60(t *testing.T) *Model {
	t.Helper()
	m, err := DefaultCatalogue().Lookup("T2278")
	if err != nil {
		t.Fatalf("Lookup(T2278) error = %v", err)
	}
	return m
}

func consumablesBlob(doc string) string {
	return base64.StdEncoding.EncodeToString([]byte(doc))
}

// fullL60Payload is a complete, well-formed L60 report.
func fullL60Payload() RawPayload {
	return RawPayload{
		"152": "AggN",
		"153": "BBADGgA=",
		"158": "Turbo",
		"160": false,
		"163": float64(87),
		"168": consumablesBlob(`{"consumable":{"duration":{"side_brush":18,"rolling_brush":36,"sensor":3}}}`),
		"177": "DAiI6suO9dXszgFSAA==",
		"135": true,
		"107": false,
		"118": true,
	}
}

func TestDecode_FullPayload(t *testing.T) {
	snap := NewDecoder(l60(t), nil).Decode(fullL60Payload())

	if snap.Activity != ActivityDocked {
		t.Errorf("Activity = %q, want docked", snap.Activity)
	}
	if snap.Battery == nil || *snap.Battery != 87 {
		t.Errorf("Battery = %v, want 87", snap.Battery)
	}
	if snap.Status == nil || *snap.Status != "Charging" {
		t.Errorf("Status = %v, want Charging", snap.Status)
	}
	if snap.ErrorCode == nil || *snap.ErrorCode != NoError || snap.ErrorMessage != nil {
		t.Errorf("ErrorCode = %v ErrorMessage = %v, want no_error and nil", snap.ErrorCode, snap.ErrorMessage)
	}
	if snap.Mode == nil || *snap.Mode != "Pause" {
		t.Errorf("Mode = %v, want Pause", snap.Mode)
	}
	if snap.FanSpeed == nil || *snap.FanSpeed != "Turbo" {
		t.Errorf("FanSpeed = %v, want Turbo", snap.FanSpeed)
	}
	if snap.AutoReturn == nil || !*snap.AutoReturn {
		t.Errorf("AutoReturn = %v, want true", snap.AutoReturn)
	}
	if snap.BoostIQ == nil || !*snap.BoostIQ {
		t.Errorf("BoostIQ = %v, want true", snap.BoostIQ)
	}
	if snap.CleaningArea != nil {
		t.Errorf("CleaningArea = %v, want nil for a model without the feature", *snap.CleaningArea)
	}

	want := map[string]int{"side_brush": 90, "rolling_brush": 90, "sensor": 90}
	if !snap.Consumables.Known {
		t.Fatal("Consumables.Known = false, want true")
	}
	for k, v := range want {
		if snap.Consumables.Remaining[k] != v {
			t.Errorf("Remaining[%s] = %d, want %d", k, snap.Consumables.Remaining[k], v)
		}
	}
}

func TestDecode_MissingFieldIsolated(t *testing.T) {
	model := l60(t)
	full := NewDecoder(model, nil).Decode(fullL60Payload())

	for field, key := range model.DPS {
		t.Run(string(field), func(t *testing.T) {
			payload := fullL60Payload()
			delete(payload, key)

			logger := &recordingLogger{}
			snap := NewDecoder(model, logger).Decode(payload)

			if !logger.skipped(field) {
				t.Errorf("expected a debug record for missing %s", field)
			}

			got := snapshotFields(snap)
			wantAll := snapshotFields(full)
			for name, value := range got {
				if name == string(field) || (field == FieldStatus && name == "activity") || (field == FieldError && name == "activity") {
					continue
				}
				if value != wantAll[name] {
					t.Errorf("removing %s changed %s: %v -> %v", field, name, wantAll[name], value)
				}
			}
			if got[string(field)] != "unknown" {
				t.Errorf("%s = %v, want unknown", field, got[string(field)])
			}
		})
	}
}

// snapshotFields flattens a snapshot to comparable strings keyed by Field.
func snapshotFields(s Snapshot) map[string]string {
	str := func(p *string) string {
		if p == nil {
			return "unknown"
		}
		return *p
	}
	num := func(p *int) string {
		if p == nil {
			return "unknown"
		}
		return fmt.Sprint(*p)
	}
	flag := func(p *bool) string {
		if p == nil {
			return "unknown"
		}
		return fmt.Sprint(*p)
	}
	cons := "unknown"
	if s.Consumables.Known {
		cons = fmt.Sprint(s.Consumables.Remaining)
	}
	return map[string]string{
		"activity":                string(s.Activity),
		string(FieldStatus):       str(s.StatusCode),
		string(FieldBattery):      num(s.Battery),
		string(FieldError):        str(s.ErrorCode),
		string(FieldMode):         str(s.Mode),
		string(FieldFanSpeed):     str(s.FanSpeed),
		string(FieldLocating):     flag(s.Locating),
		string(FieldConsumables):  cons,
		string(FieldCleaningArea): num(s.CleaningArea),
		string(FieldCleaningTime): num(s.CleaningTime),
		string(FieldAutoReturn):   flag(s.AutoReturn),
		string(FieldDoNotDisturb): flag(s.DoNotDisturb),
		string(FieldBoostIQ):      flag(s.BoostIQ),
	}
}

func TestDecode_Battery(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want *int
	}{
		{"float", float64(42), ptr(42)},
		{"int", 42, ptr(42)},
		{"numeric string", "42", ptr(42)},
		{"clamped high", 150, ptr(100)},
		{"clamped low", -5, ptr(0)},
		{"fractional", 42.5, nil},
		{"float at 2^63", float64(1 << 63), nil},
		{"bool", true, nil},
		{"text", "full", nil},
		{"nested", map[string]any{"v": 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewDecoder(l60(t), nil).Decode(RawPayload{"163": tt.raw})
			switch {
			case tt.want == nil && snap.Battery != nil:
				t.Errorf("Battery = %d, want unknown", *snap.Battery)
			case tt.want != nil && (snap.Battery == nil || *snap.Battery != *tt.want):
				t.Errorf("Battery = %v, want %d", snap.Battery, *tt.want)
			}
		})
	}
}

func TestDecode_Consumables(t *testing.T) {
	tests := []struct {
		name      string
		raw       any
		wantKnown bool
		want      map[string]int
	}{
		{"json", consumablesBlob(`{"consumable":{"duration":{"side_brush":90,"filter_mesh":400}}}`), true,
			map[string]int{"side_brush": 50, "filter_mesh": 0}},
		{"single quoted", consumablesBlob(`{'consumable': {'duration': {'sensor': 15}}}`), true,
			map[string]int{"sensor": 50}},
		{"unknown component ignored", consumablesBlob(`{"consumable":{"duration":{"mystery":5}}}`), true,
			map[string]int{}},
		{"not base64", "%%%", false, nil},
		{"not a document", consumablesBlob("garbage"), false, nil},
		{"no duration", consumablesBlob(`{"consumable":{}}`), false, nil},
		{"wrong type", 17, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewDecoder(l60(t), nil).Decode(RawPayload{"168": tt.raw, "163": 50})
			if snap.Consumables.Known != tt.wantKnown {
				t.Fatalf("Known = %v, want %v", snap.Consumables.Known, tt.wantKnown)
			}
			if !tt.wantKnown && len(snap.Consumables.Remaining) != 0 {
				t.Errorf("Remaining = %v, want empty", snap.Consumables.Remaining)
			}
			for k, v := range tt.want {
				if snap.Consumables.Remaining[k] != v {
					t.Errorf("Remaining[%s] = %d, want %d", k, snap.Consumables.Remaining[k], v)
				}
			}
			if snap.Battery == nil || *snap.Battery != 50 {
				t.Errorf("Battery = %v, malformed consumables must not affect other fields", snap.Battery)
			}
		})
	}
}

func TestDecode_Activity(t *testing.T) {
	model := l60(t)
	tests := []struct {
		status string
		fault  string
		want   Activity
	}{
		{"BgoAEAUyAA==", "DAiI6suO9dXszgFSAA==", ActivityCleaning},
		{"CAoAEAUyAggB", "DAiI6suO9dXszgFSAA==", ActivityPaused},
		{"CgoCCAEQBTICCAE=", "", ActivityPaused},
		{"BBAHQgA=", "", ActivityReturning},
		{"BhADGgIIAQ==", "", ActivityDocked},
		{"AhAB", "", ActivityIdle},
		{"AA==", "", ActivityIdle},
		{"BgoAEAUyAA==", "FAj+nMu7zuPszgEaAtg2UgQSAtg2", ActivityError},
		{"not-a-status", "", ActivityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.status+"/"+tt.fault, func(t *testing.T) {
			payload := RawPayload{"153": tt.status}
			if tt.fault != "" {
				payload["177"] = tt.fault
			}
			snap := NewDecoder(model, nil).Decode(payload)
			if snap.Activity != tt.want {
				t.Errorf("Activity = %q, want %q", snap.Activity, tt.want)
			}
		})
	}
}

func TestDecode_Fault(t *testing.T) {
	model, err := DefaultCatalogue().Lookup("T2118")
	if err != nil {
		t.Fatalf("Lookup(T2118) error = %v", err)
	}
	dec := NewDecoder(model, nil)

	snap := dec.Decode(RawPayload{"106": "Wheel_stuck", "15": "Running"})
	if snap.ErrorCode == nil || *snap.ErrorCode != "wheel_stuck" {
		t.Fatalf("ErrorCode = %v, want wheel_stuck", snap.ErrorCode)
	}
	if snap.ErrorMessage == nil || *snap.ErrorMessage != "Wheel stuck" {
		t.Errorf("ErrorMessage = %v, want Wheel stuck", snap.ErrorMessage)
	}
	if !snap.HasFault() || snap.Activity != ActivityError {
		t.Errorf("HasFault = %v Activity = %q, want true and error", snap.HasFault(), snap.Activity)
	}

	snap = dec.Decode(RawPayload{"106": 0, "15": "Running"})
	if snap.HasFault() || snap.Activity != ActivityCleaning {
		t.Errorf("numeric zero: HasFault = %v Activity = %q", snap.HasFault(), snap.Activity)
	}

	snap = dec.Decode(RawPayload{"106": "Brand_new_fault"})
	if snap.ErrorCode != nil {
		t.Errorf("unrecognised fault ErrorCode = %v, want unknown", *snap.ErrorCode)
	}
}

func TestDecode_GatedFields(t *testing.T) {
	model, err := DefaultCatalogue().Lookup("T2118")
	if err != nil {
		t.Fatal(err)
	}
	snap := NewDecoder(model, nil).Decode(RawPayload{
		"110": 24,
		"109": "31",
		"102": "Boost_IQ",
		"5":   "Edge",
	})
	if snap.CleaningArea == nil || *snap.CleaningArea != 24 {
		t.Errorf("CleaningArea = %v, want 24", snap.CleaningArea)
	}
	if snap.CleaningTime == nil || *snap.CleaningTime != 31 {
		t.Errorf("CleaningTime = %v, want 31", snap.CleaningTime)
	}
	if snap.FanSpeed == nil || *snap.FanSpeed != "Boost IQ" {
		t.Errorf("FanSpeed = %v, want Boost IQ", snap.FanSpeed)
	}
	if snap.Mode == nil || *snap.Mode != "Edge" {
		t.Errorf("Mode = %v, want Edge", snap.Mode)
	}
}

func TestDecode_IgnoresUnknownKeys(t *testing.T) {
	logger := &recordingLogger{}
	snap := NewDecoder(l60(t), logger).Decode(RawPayload{"163": 10, "999": "future datapoint"})
	if snap.Battery == nil || *snap.Battery != 10 {
		t.Errorf("Battery = %v, want 10", snap.Battery)
	}
	for _, e := range logger.entries {
		if e["dps"] == "999" {
			t.Error("unknown key should not be logged")
		}
	}
}

func TestDecode_EmptyAndNil(t *testing.T) {
	dec := NewDecoder(l60(t), nil)
	for _, payload := range []RawPayload{nil, {}} {
		snap := dec.Decode(payload)
		if snap.Activity != ActivityUnknown || snap.Battery != nil || snap.Consumables.Known {
			t.Errorf("Decode(%v) = %+v, want all unknown", payload, snap)
		}
	}
}
