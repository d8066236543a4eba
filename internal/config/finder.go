// Package config loads the decay channels and selection cuts used by the
// finder from a JSON file.
//
// Every numeric cut is a pointer: a nil value means the cut is not applied.
// The Get* accessors return the documented fallback for unset run options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultConfigPath is the path to the shipped finder defaults.
const DefaultConfigPath = "config/finder.defaults.json"

// Duplicate policies accepted by the "duplicates" option.
const (
	DuplicatesKeep     = "keep"
	DuplicatesSuppress = "suppress"
)

// FinderConfig is the root of the configuration file.
type FinderConfig struct {
	// FieldBz is the solenoid field in kG; 0 selects straight-line tracks.
	FieldBz    *float64               `json:"field_bz,omitempty"`
	Duplicates *string                `json:"duplicates,omitempty"`
	Decays     []DecayConfig          `json:"decays"`
	Cuts       map[string]*CutsConfig `json:"cuts"`
}

// DecayConfig describes one decay channel to search for.
type DecayConfig struct {
	Name       string           `json:"name"`
	MotherPDG  int              `json:"mother_pdg"`
	MotherMass *float64         `json:"mother_mass,omitempty"`
	Daughters  []DaughterConfig `json:"daughters"`
}

// DaughterConfig names a daughter species; Mass overrides the nominal
// mass hypothesis.
type DaughterConfig struct {
	PDG  int      `json:"pdg"`
	Mass *float64 `json:"mass,omitempty"`
}

// CutsConfig holds the selection thresholds for one channel.
// Lower bounds: chi2_prim, cos_mom_sum, ldl, cos_topo.
// Upper bounds: distance, chi2_geo, chi2_topo, distance_to_sv.
type CutsConfig struct {
	Chi2Prim     []*float64 `json:"chi2_prim,omitempty"`
	Distance     *float64   `json:"distance,omitempty"`
	CosMomSum    []*float64 `json:"cos_mom_sum,omitempty"`
	Chi2Geo      *float64   `json:"chi2_geo,omitempty"`
	LdL          *float64   `json:"ldl,omitempty"`
	RejectFromPV *bool      `json:"reject_from_pv,omitempty"`
	CosTopo      *float64   `json:"cos_topo,omitempty"`
	Chi2Topo     *float64   `json:"chi2_topo,omitempty"`
	DistanceToSV *float64   `json:"distance_to_sv,omitempty"`
	MassMin      *float64   `json:"mass_min,omitempty"`
	MassMax      *float64   `json:"mass_max,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// LoadFinderConfig loads and validates a FinderConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadFinderConfig(path string) (*FinderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &FinderConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for tests and binaries run from inside the repository.
func MustLoadDefaultConfig() *FinderConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/<tool>/ or deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadFinderConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the whole file.
func (c *FinderConfig) Validate() error {
	if c.Duplicates != nil {
		switch *c.Duplicates {
		case DuplicatesKeep, DuplicatesSuppress:
		default:
			return fmt.Errorf("duplicates must be %q or %q, got %q", DuplicatesKeep, DuplicatesSuppress, *c.Duplicates)
		}
	}
	seen := make(map[string]bool, len(c.Decays))
	for i := range c.Decays {
		d := &c.Decays[i]
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate decay name %q", d.Name)
		}
		seen[d.Name] = true
	}
	for name, cuts := range c.Cuts {
		if cuts == nil {
			return fmt.Errorf("cuts %q: empty entry", name)
		}
		if err := cuts.Validate(); err != nil {
			return fmt.Errorf("cuts %q: %w", name, err)
		}
	}
	return nil
}

// GetFieldBz returns field_bz or 0 (straight-line propagation).
func (c *FinderConfig) GetFieldBz() float64 {
	if c.FieldBz == nil {
		return 0
	}
	return *c.FieldBz
}

// GetDuplicates returns the duplicate policy or "keep".
func (c *FinderConfig) GetDuplicates() string {
	if c.Duplicates == nil {
		return DuplicatesKeep
	}
	return *c.Duplicates
}

// Decay returns the named decay channel.
func (c *FinderConfig) Decay(name string) (DecayConfig, error) {
	for _, d := range c.Decays {
		if d.Name == name {
			return d, nil
		}
	}
	return DecayConfig{}, fmt.Errorf("unknown decay %q", name)
}

// CutsFor returns the cuts for the named channel.
func (c *FinderConfig) CutsFor(name string) (*CutsConfig, error) {
	cuts, ok := c.Cuts[name]
	if !ok || cuts == nil {
		return nil, fmt.Errorf("no cuts configured for %q", name)
	}
	return cuts, nil
}

// DecayNames returns the configured channel names in file order.
func (c *FinderConfig) DecayNames() []string {
	out := make([]string, 0, len(c.Decays))
	for _, d := range c.Decays {
		out = append(out, d.Name)
	}
	return out
}

// CutNames returns the channels that have cuts, sorted.
func (c *FinderConfig) CutNames() []string {
	out := make([]string, 0, len(c.Cuts))
	for name := range c.Cuts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks a single decay definition.
func (d *DecayConfig) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("decay name must not be empty")
	}
	if n := len(d.Daughters); n < 2 || n > 3 {
		return fmt.Errorf("decay %q: expected 2 or 3 daughters, got %d", d.Name, n)
	}
	if d.MotherMass != nil && *d.MotherMass <= 0 {
		return fmt.Errorf("decay %q: mother_mass must be positive, got %f", d.Name, *d.MotherMass)
	}
	for i, dau := range d.Daughters {
		if dau.PDG == 0 {
			return fmt.Errorf("decay %q: daughter %d has no pdg code", d.Name, i)
		}
		if dau.Mass != nil && *dau.Mass < 0 {
			return fmt.Errorf("decay %q: daughter %d mass must be non-negative, got %f", d.Name, i, *dau.Mass)
		}
	}
	return nil
}

// Validate checks threshold ranges.
func (c *CutsConfig) Validate() error {
	if len(c.Chi2Prim) > 3 {
		return fmt.Errorf("chi2_prim has %d entries (max 3)", len(c.Chi2Prim))
	}
	if len(c.CosMomSum) > 3 {
		return fmt.Errorf("cos_mom_sum has %d entries (max 3)", len(c.CosMomSum))
	}
	for i, v := range c.Chi2Prim {
		if v != nil && *v < 0 {
			return fmt.Errorf("chi2_prim[%d] must be non-negative, got %f", i, *v)
		}
	}
	for i, v := range c.CosMomSum {
		if v != nil && (*v < -1 || *v > 1) {
			return fmt.Errorf("cos_mom_sum[%d] must be between -1 and 1, got %f", i, *v)
		}
	}
	nonNegative := map[string]*float64{
		"distance":       c.Distance,
		"chi2_geo":       c.Chi2Geo,
		"ldl":            c.LdL,
		"chi2_topo":      c.Chi2Topo,
		"distance_to_sv": c.DistanceToSV,
	}
	for name, v := range nonNegative {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, *v)
		}
	}
	if c.CosTopo != nil && (*c.CosTopo < -1 || *c.CosTopo > 1) {
		return fmt.Errorf("cos_topo must be between -1 and 1, got %f", *c.CosTopo)
	}
	if c.MassMin != nil && c.MassMax != nil && *c.MassMin > *c.MassMax {
		return fmt.Errorf("mass_min (%f) exceeds mass_max (%f)", *c.MassMin, *c.MassMax)
	}
	return nil
}
