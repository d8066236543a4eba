// Package pdg enumerates the charged particle species that tracks can be
// hypothesised as, with their PDG Monte Carlo codes and nominal masses.
//
// Species is a small dense enumerant so callers can index fixed arrays by
// it; FromPDG maps any code that is not recognised to Unknown.
package pdg

import "fmt"

// Species is a charged track species hypothesis.
type Species uint8

const (
	Unknown Species = iota
	Electron
	Positron
	MuonMinus
	MuonPlus
	PionPlus
	PionMinus
	KaonPlus
	KaonMinus
	Proton
	AntiProton
	Deuteron
	AntiDeuteron
	Triton
	Helium3

	// NumSpecies is the number of enumerants including Unknown.
	NumSpecies
)

// PDG codes for composite particles used by the shipped decay channels.
const (
	CodeLambda      = 3122
	CodeAntiLambda  = -3122
	CodeK0Short     = 310
	CodeHypertriton = 1010010030
)

// Nominal composite masses (GeV/c²).
const (
	MassLambda      = 1.115683
	MassK0Short     = 0.497611
	MassHypertriton = 2.99131
)

type speciesInfo struct {
	name   string
	code   int
	mass   float64 // GeV/c²
	charge int
}

var table = [NumSpecies]speciesInfo{
	Unknown:      {"unknown", 0, 0, 0},
	Electron:     {"e-", 11, 0.00051099895, -1},
	Positron:     {"e+", -11, 0.00051099895, 1},
	MuonMinus:    {"mu-", 13, 0.1056583755, -1},
	MuonPlus:     {"mu+", -13, 0.1056583755, 1},
	PionPlus:     {"pi+", 211, 0.13957039, 1},
	PionMinus:    {"pi-", -211, 0.13957039, -1},
	KaonPlus:     {"K+", 321, 0.493677, 1},
	KaonMinus:    {"K-", -321, 0.493677, -1},
	Proton:       {"p", 2212, 0.938272088, 1},
	AntiProton:   {"pbar", -2212, 0.938272088, -1},
	Deuteron:     {"d", 1000010020, 1.875612942, 1},
	AntiDeuteron: {"dbar", -1000010020, 1.875612942, -1},
	Triton:       {"t", 1000010030, 2.808921005, 1},
	Helium3:      {"He3", 1000020030, 2.808391608, 2},
}

var byCode = func() map[int]Species {
	m := make(map[int]Species, NumSpecies)
	for s := Species(1); s < NumSpecies; s++ {
		m[table[s].code] = s
	}
	return m
}()

// FromPDG returns the species for a PDG code, or Unknown.
func FromPDG(code int) Species {
	if s, ok := byCode[code]; ok {
		return s
	}
	return Unknown
}

// Valid reports whether s is a recognised, non-Unknown species.
func (s Species) Valid() bool { return s > Unknown && s < NumSpecies }

// PDG returns the PDG code (0 for Unknown or out-of-range values).
func (s Species) PDG() int {
	if s >= NumSpecies {
		return 0
	}
	return table[s].code
}

// Mass returns the nominal mass in GeV/c².
func (s Species) Mass() float64 {
	if s >= NumSpecies {
		return 0
	}
	return table[s].mass
}

// Charge returns the electric charge in units of e.
func (s Species) Charge() int {
	if s >= NumSpecies {
		return 0
	}
	return table[s].charge
}

func (s Species) String() string {
	if s >= NumSpecies {
		return fmt.Sprintf("Species(%d)", uint8(s))
	}
	return table[s].name
}

// All returns every recognised species in enumeration order.
func All() []Species {
	out := make([]Species, 0, NumSpecies-1)
	for s := Species(1); s < NumSpecies; s++ {
		out = append(out, s)
	}
	return out
}
