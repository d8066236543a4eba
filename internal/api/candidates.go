package api

import (
	"math"
	"strconv"

	"github.com/google/uuid"

	"github.com/banshee-data/simplefinder/internal/finder"
)

// number is a float64 that encodes NaN and ±Inf as the strings "NaN",
// "+Inf" and "-Inf", matching how the results database stores them.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func numbers(xs []float64) []number {
	out := make([]number, len(xs))
	for i, v := range xs {
		out[i] = number(v)
	}
	return out
}

// candidateJSON is the wire form of finder.Candidate. Field names match
// so clients can decode finite candidates straight into finder.Candidate.
type candidateJSON struct {
	ID      uuid.UUID
	EventID string
	Decay   string
	PDG     int
	Charge  int

	Params []number
	Cov    []number

	Mass    number
	MassErr number

	Daughters []int

	Chi2Prim     []number
	CosMomSum    []number
	Distance     number
	DistanceToSV number
	Chi2Geo      number
	NDF          int
	Prob         number

	L        number
	DL       number
	LdL      number
	IsFromPV bool
	CosTopo  number
	Chi2Topo number
}

func toCandidateJSON(cands []finder.Candidate) []candidateJSON {
	out := make([]candidateJSON, len(cands))
	for i, c := range cands {
		out[i] = candidateJSON{
			ID:           c.ID,
			EventID:      c.EventID,
			Decay:        c.Decay,
			PDG:          c.PDG,
			Charge:       c.Charge,
			Params:       numbers(c.Params[:]),
			Cov:          numbers(c.Cov[:]),
			Mass:         number(c.Mass),
			MassErr:      number(c.MassErr),
			Daughters:    c.Daughters,
			Chi2Prim:     numbers(c.Chi2Prim[:]),
			CosMomSum:    numbers(c.CosMomSum[:]),
			Distance:     number(c.Distance),
			DistanceToSV: number(c.DistanceToSV),
			Chi2Geo:      number(c.Chi2Geo),
			NDF:          c.NDF,
			Prob:         number(c.Prob),
			L:            number(c.L),
			DL:           number(c.DL),
			LdL:          number(c.LdL),
			IsFromPV:     c.IsFromPV,
			CosTopo:      number(c.CosTopo),
			Chi2Topo:     number(c.Chi2Topo),
		}
	}
	return out
}
