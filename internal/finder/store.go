package finder

import (
	"math"
	"strconv"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/simplefinder/internal/kf"
)

// candidateNamespace seeds the name-based candidate IDs.
var candidateNamespace = uuid.MustParse("8b1c6f7e-2d4a-5e39-9f0b-3a6c1d2e4f57")

// Candidate is the output record of an accepted mother. Daughters holds
// indices into the track collection of the event that produced it and is
// only meaningful for that event.
type Candidate struct {
	ID      uuid.UUID
	EventID string
	Decay   string
	PDG     int
	Charge  int

	Params [kf.NParams]float64
	Cov    [36]float64 // lower triangle of the 8x8 covariance, row-major

	Mass    float64
	MassErr float64

	Daughters []int

	Chi2Prim     [MaxDaughters]float64
	CosMomSum    [MaxDaughters]float64
	Distance     float64
	DistanceToSV float64
	Chi2Geo      float64
	NDF          int
	Prob         float64

	L        float64
	DL       float64
	LdL      float64
	IsFromPV bool
	CosTopo  float64
	Chi2Topo float64
}

// NDaughters returns the decay multiplicity.
func (c Candidate) NDaughters() int { return len(c.Daughters) }

func (c Candidate) clone() Candidate {
	out := c
	out.Daughters = append([]int(nil), c.Daughters...)
	return out
}

// candidateID derives a stable ID from the event, channel and daughter
// indices, so repeated passes produce identical records.
func candidateID(eventID, decay string, daughters []int) uuid.UUID {
	name := make([]byte, 0, len(eventID)+len(decay)+8*len(daughters))
	name = append(name, eventID...)
	name = append(name, '/')
	name = append(name, decay...)
	for _, d := range daughters {
		name = append(name, '/')
		name = strconv.AppendInt(name, int64(d), 10)
	}
	return uuid.NewSHA1(candidateNamespace, name)
}

// chi2Probability is the upper-tail probability of chi2 with ndf degrees
// of freedom.
func chi2Probability(chi2 float64, ndf int) float64 {
	if ndf <= 0 || math.IsNaN(chi2) || chi2 < 0 {
		return 0
	}
	return distuv.ChiSquared{K: float64(ndf)}.Survival(chi2)
}

// Store accumulates the accepted candidates of one event in discovery
// order.
type Store struct {
	candidates []Candidate
}

// Reset drops all records, keeping capacity.
func (s *Store) Reset() {
	clear(s.candidates)
	s.candidates = s.candidates[:0]
}

// Save appends a record.
func (s *Store) Save(c Candidate) {
	s.candidates = append(s.candidates, c)
}

// Len returns the number of stored records.
func (s *Store) Len() int { return len(s.candidates) }

// Candidates returns a copy of the stored records.
func (s *Store) Candidates() []Candidate {
	out := make([]Candidate, len(s.candidates))
	for i, c := range s.candidates {
		out[i] = c.clone()
	}
	return out
}

// Masses returns the invariant mass of every stored record.
func (s *Store) Masses() []float64 {
	out := make([]float64, len(s.candidates))
	for i, c := range s.candidates {
		out[i] = c.Mass
	}
	return out
}
