package robovac

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestDefaultCatalogue(t *testing.T) {
	c := DefaultCatalogue()
	if got := c.Codes(); !slices.Equal(got, []string{"T2118", "T2278"}) {
		t.Errorf("Codes() = %v", got)
	}

	m, err := c.Lookup("T2278-L60-EU")
	if err != nil {
		t.Fatalf("Lookup with suffix error = %v", err)
	}
	if m.Code != "T2278" || m.Name != "RoboVac L60" {
		t.Errorf("model = %s %q", m.Code, m.Name)
	}
	if _, err := c.Lookup("X9999"); !errors.Is(err, ErrModelNotSupported) {
		t.Errorf("Lookup(X9999) error = %v, want ErrModelNotSupported", err)
	}
}

func TestModel_Capabilities(t *testing.T) {
	m, _ := DefaultCatalogue().Lookup("T2278")

	cmds := m.SupportedCommands()
	for _, want := range []Command{CommandStart, CommandReturnToBase, CommandRoomClean, CommandSendCommand} {
		if !slices.Contains(cmds, want) {
			t.Errorf("SupportedCommands() missing %s", want)
		}
	}
	if slices.Contains(cmds, CommandEdgeClean) {
		t.Error("L60 should not support edge_clean")
	}
	if !m.DeclaresKey("139") || m.DeclaresKey("1") {
		t.Error("DeclaresKey mismatch")
	}
	if got := m.FriendlyFanSpeeds(); !slices.Equal(got, []string{"Quiet", "Standard", "Turbo", "Max"}) {
		t.Errorf("FriendlyFanSpeeds() = %v", got)
	}
}

func TestParseCatalogue_Invalid(t *testing.T) {
	tests := map[string]string{
		"no name":     `models: {X1: {dps: {battery: "1"}}}`,
		"two sources": `models: {X1: {name: x, commands: {start: [{dps: "1", value: true, param: fan_speed}]}}}`,
		"no dps":      `models: {X1: {name: x, commands: {start: [{value: true}]}}}`,
		"bad status":  `models: {X1: {name: x, status_values: {a: NOT_A_STATUS}}}`,
		"bad param":   `models: {X1: {name: x, commands: {start: [{dps: "1", param: colour}]}}}`,
		"bad yaml":    `models: [`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalogue([]byte(doc)); err == nil {
				t.Error("ParseCatalogue() error = nil, want error")
			}
		})
	}
}

func TestLoadCatalogue_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	doc := `
models:
  T2999:
    name: "Test Vac"
    dps: {battery: "8"}
    commands:
      start: [{dps: "2", value: true}]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalogue(path)
	if err != nil {
		t.Fatalf("LoadCatalogue() error = %v", err)
	}
	if _, err := c.Lookup("T2999"); err != nil {
		t.Errorf("override model missing: %v", err)
	}
	if _, err := c.Lookup("T2278"); err != nil {
		t.Errorf("builtin model missing after override: %v", err)
	}
	if _, err := DefaultCatalogue().Lookup("T2999"); err == nil {
		t.Error("override leaked into the default catalogue")
	}

	if _, err := LoadCatalogue(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadCatalogue(missing) error = nil")
	}
}
