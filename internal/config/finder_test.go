package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	if got := cfg.DecayNames(); len(got) != 4 || got[0] != "lambda" {
		t.Errorf("DecayNames() = %v", got)
	}
	lambda, err := cfg.Decay("lambda")
	if err != nil {
		t.Fatalf("Decay(lambda): %v", err)
	}
	if lambda.MotherPDG != 3122 || len(lambda.Daughters) != 2 {
		t.Errorf("unexpected lambda definition: %+v", lambda)
	}
	cuts, err := cfg.CutsFor("lambda")
	if err != nil {
		t.Fatalf("CutsFor(lambda): %v", err)
	}
	if cuts.Chi2Geo == nil || *cuts.Chi2Geo != 3.0 {
		t.Errorf("expected chi2_geo 3.0, got %v", cuts.Chi2Geo)
	}
	if cuts.CosTopo != nil {
		t.Errorf("cos_topo should be unset in defaults, got %v", *cuts.CosTopo)
	}
	if cfg.GetFieldBz() != 0 {
		t.Errorf("GetFieldBz() = %v, want 0", cfg.GetFieldBz())
	}
	if cfg.GetDuplicates() != DuplicatesKeep {
		t.Errorf("GetDuplicates() = %q", cfg.GetDuplicates())
	}
	for _, name := range cfg.DecayNames() {
		if _, err := cfg.CutsFor(name); err != nil {
			t.Errorf("decay %q has no cuts: %v", name, err)
		}
	}
}

func TestLoadFinderConfig_Partial(t *testing.T) {
	path := writeConfig(t, "finder.json", `{
  "field_bz": 5,
  "decays": [{"name": "k0", "mother_pdg": 310, "daughters": [{"pdg": 211}, {"pdg": -211, "mass": 0.1}]}],
  "cuts": {"k0": {"distance": 0.5}}
}`)
	cfg, err := LoadFinderConfig(path)
	if err != nil {
		t.Fatalf("LoadFinderConfig: %v", err)
	}
	if cfg.GetFieldBz() != 5 {
		t.Errorf("GetFieldBz() = %v, want 5", cfg.GetFieldBz())
	}
	d, err := cfg.Decay("k0")
	if err != nil {
		t.Fatal(err)
	}
	if d.MotherMass != nil {
		t.Errorf("MotherMass should be unset")
	}
	if d.Daughters[1].Mass == nil || *d.Daughters[1].Mass != 0.1 {
		t.Errorf("daughter mass override not loaded")
	}
	if _, err := cfg.Decay("lambda"); err == nil {
		t.Error("expected error for unknown decay")
	}
	if _, err := cfg.CutsFor("lambda"); err == nil {
		t.Error("expected error for missing cuts")
	}
	if got := cfg.CutNames(); len(got) != 1 || got[0] != "k0" {
		t.Errorf("CutNames() = %v", got)
	}
}

func TestLoadFinderConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "finder.yaml", `{}`, ".json extension"},
		{"bad json", "finder.json", `{`, "parse config JSON"},
		{"one daughter", "finder.json", `{"decays":[{"name":"x","daughters":[{"pdg":211}]}]}`, "2 or 3 daughters"},
		{"four daughters", "finder.json", `{"decays":[{"name":"x","daughters":[{"pdg":1},{"pdg":2},{"pdg":3},{"pdg":4}]}]}`, "2 or 3 daughters"},
		{"no name", "finder.json", `{"decays":[{"daughters":[{"pdg":1},{"pdg":2}]}]}`, "name must not be empty"},
		{"duplicate name", "finder.json", `{"decays":[{"name":"x","daughters":[{"pdg":1},{"pdg":2}]},{"name":"x","daughters":[{"pdg":1},{"pdg":2}]}]}`, "duplicate decay"},
		{"zero pdg", "finder.json", `{"decays":[{"name":"x","daughters":[{"pdg":0},{"pdg":2}]}]}`, "no pdg code"},
		{"bad duplicates", "finder.json", `{"duplicates":"maybe"}`, "duplicates must be"},
		{"negative distance", "finder.json", `{"cuts":{"x":{"distance":-1}}}`, "distance must be non-negative"},
		{"cos out of range", "finder.json", `{"cuts":{"x":{"cos_topo":1.5}}}`, "cos_topo"},
		{"mass window", "finder.json", `{"cuts":{"x":{"mass_min":2,"mass_max":1}}}`, "exceeds mass_max"},
		{"too many chi2_prim", "finder.json", `{"cuts":{"x":{"chi2_prim":[1,2,3,4]}}}`, "max 3"},
		{"null cuts", "finder.json", `{"cuts":{"x":null}}`, "empty entry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadFinderConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFinderConfig_MissingFile(t *testing.T) {
	if _, err := LoadFinderConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCutsConfig_Validate(t *testing.T) {
	c := &CutsConfig{
		Chi2Prim:     []*float64{ptrFloat64(18.42), nil},
		CosMomSum:    []*float64{nil, ptrFloat64(0.9)},
		RejectFromPV: ptrBool(true),
		MassMin:      ptrFloat64(1.0),
		MassMax:      ptrFloat64(1.2),
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	c.CosMomSum[1] = ptrFloat64(-2)
	if err := c.Validate(); err == nil {
		t.Error("expected cos_mom_sum error")
	}
}

func TestFinderConfig_DuplicatesOption(t *testing.T) {
	cfg := &FinderConfig{Duplicates: ptrString(DuplicatesSuppress)}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.GetDuplicates() != DuplicatesSuppress {
		t.Errorf("GetDuplicates() = %q", cfg.GetDuplicates())
	}
}
