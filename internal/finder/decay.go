package finder

import (
	"fmt"

	"github.com/banshee-data/simplefinder/internal/config"
	"github.com/banshee-data/simplefinder/internal/pdg"
)

// MaxDaughters is the largest supported decay multiplicity.
const MaxDaughters = 3

// Daughter is one decay product slot and its mass hypothesis.
type Daughter struct {
	Species pdg.Species
	Mass    float64 // GeV/c²
}

// Decay describes the channel to search for.
type Decay struct {
	Name       string
	MotherPDG  int
	MotherMass float64
	Daughters  []Daughter
}

// NewDecay builds a decay from daughter PDG codes using nominal masses.
func NewDecay(name string, motherPDG int, motherMass float64, daughterPDGs ...int) (Decay, error) {
	d := Decay{Name: name, MotherPDG: motherPDG, MotherMass: motherMass}
	for _, code := range daughterPDGs {
		s := pdg.FromPDG(code)
		d.Daughters = append(d.Daughters, Daughter{Species: s, Mass: s.Mass()})
	}
	if err := d.Validate(); err != nil {
		return Decay{}, err
	}
	return d, nil
}

// DecayFromConfig converts a loaded decay channel.
func DecayFromConfig(cfg config.DecayConfig) (Decay, error) {
	d := Decay{Name: cfg.Name, MotherPDG: cfg.MotherPDG}
	if cfg.MotherMass != nil {
		d.MotherMass = *cfg.MotherMass
	}
	for _, dc := range cfg.Daughters {
		s := pdg.FromPDG(dc.PDG)
		dau := Daughter{Species: s, Mass: s.Mass()}
		if dc.Mass != nil {
			dau.Mass = *dc.Mass
		}
		d.Daughters = append(d.Daughters, dau)
	}
	if err := d.Validate(); err != nil {
		return Decay{}, err
	}
	return d, nil
}

// Validate checks multiplicity and species.
func (d Decay) Validate() error {
	if n := len(d.Daughters); n < 2 || n > MaxDaughters {
		return fmt.Errorf("%w: %q has %d daughters, want 2 or 3", ErrInvalidDecay, d.Name, n)
	}
	for i, dau := range d.Daughters {
		if !dau.Species.Valid() {
			return fmt.Errorf("%w: %q daughter %d has unrecognised species", ErrInvalidDecay, d.Name, i)
		}
		if dau.Mass < 0 {
			return fmt.Errorf("%w: %q daughter %d has negative mass %f", ErrInvalidDecay, d.Name, i, dau.Mass)
		}
	}
	return nil
}

func (d Decay) clone() Decay {
	out := d
	out.Daughters = append([]Daughter(nil), d.Daughters...)
	return out
}
