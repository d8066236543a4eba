package finder

import (
	"fmt"

	"github.com/banshee-data/simplefinder/internal/config"
)

// CutName identifies a discriminator in a CutSet.
type CutName string

const (
	CutChi2Prim     CutName = "chi2_prim"
	CutDistance     CutName = "distance"
	CutCosMomSum    CutName = "cos_mom_sum"
	CutChi2Geo      CutName = "chi2_geo"
	CutLdL          CutName = "ldl"
	CutFromPV       CutName = "reject_from_pv"
	CutCosTopo      CutName = "cos_topo"
	CutChi2Topo     CutName = "chi2_topo"
	CutDistanceToSV CutName = "distance_to_sv"
	CutMassMin      CutName = "mass_min"
	CutMassMax      CutName = "mass_max"
)

// Lower reports whether the cut is a lower bound (value >= threshold
// passes). Upper bounds pass when value <= threshold.
func (n CutName) Lower() bool {
	switch n {
	case CutChi2Prim, CutCosMomSum, CutLdL, CutCosTopo, CutMassMin:
		return true
	}
	return false
}

// Limit is an optional threshold.
type Limit struct {
	Value float64
	Set   bool
}

// At returns a Limit that is applied at v.
func At(v float64) Limit { return Limit{Value: v, Set: true} }

func atLeast(v float64, l Limit) bool { return !l.Set || v >= l.Value }
func atMost(v float64, l Limit) bool  { return !l.Set || v <= l.Value }

// CutSet holds the selection thresholds for one channel. The zero value
// applies no cuts. Boundaries are inclusive and NaN fails any applied cut.
// Slot-indexed limits follow the order of Decay.Daughters.
type CutSet struct {
	Chi2Prim     [MaxDaughters]Limit // lower: daughters must not point at the PV
	Distance     Limit               // upper: DCA of the first two daughters
	CosMomSum    [MaxDaughters]Limit // lower
	Chi2Geo      Limit               // upper
	LdL          Limit               // lower
	RejectFromPV bool
	CosTopo      Limit // lower
	Chi2Topo     Limit // upper
	DistanceToSV Limit // upper, three-body only
	MassMin      Limit
	MassMax      Limit
}

// CutSetFromConfig converts loaded cuts. Nil entries stay unset.
func CutSetFromConfig(c *config.CutsConfig) CutSet {
	var cs CutSet
	if c == nil {
		return cs
	}
	limit := func(p *float64) Limit {
		if p == nil {
			return Limit{}
		}
		return At(*p)
	}
	for i, v := range c.Chi2Prim {
		if i < MaxDaughters {
			cs.Chi2Prim[i] = limit(v)
		}
	}
	for i, v := range c.CosMomSum {
		if i < MaxDaughters {
			cs.CosMomSum[i] = limit(v)
		}
	}
	cs.Distance = limit(c.Distance)
	cs.Chi2Geo = limit(c.Chi2Geo)
	cs.LdL = limit(c.LdL)
	cs.RejectFromPV = c.RejectFromPV != nil && *c.RejectFromPV
	cs.CosTopo = limit(c.CosTopo)
	cs.Chi2Topo = limit(c.Chi2Topo)
	cs.DistanceToSV = limit(c.DistanceToSV)
	cs.MassMin = limit(c.MassMin)
	cs.MassMax = limit(c.MassMax)
	return cs
}

// Pass checks a single discriminator. slot is only used by the
// per-daughter cuts. For CutFromPV a value of 1 means "from PV".
func (c CutSet) Pass(name CutName, slot int, v float64) bool {
	if name == CutFromPV {
		return !c.RejectFromPV || v == 0
	}
	l, ok := c.limit(name, slot)
	if !ok {
		return true
	}
	if name.Lower() {
		return atLeast(v, l)
	}
	return atMost(v, l)
}

// limit returns the threshold stored for name. Out-of-range slots give an
// unset Limit; ok is false for names that are not thresholds.
func (c CutSet) limit(name CutName, slot int) (l Limit, ok bool) {
	switch name {
	case CutChi2Prim, CutCosMomSum:
		if slot < 0 || slot >= MaxDaughters {
			return Limit{}, true
		}
		if name == CutChi2Prim {
			return c.Chi2Prim[slot], true
		}
		return c.CosMomSum[slot], true
	case CutDistance:
		return c.Distance, true
	case CutChi2Geo:
		return c.Chi2Geo, true
	case CutLdL:
		return c.LdL, true
	case CutCosTopo:
		return c.CosTopo, true
	case CutChi2Topo:
		return c.Chi2Topo, true
	case CutDistanceToSV:
		return c.DistanceToSV, true
	case CutMassMin:
		return c.MassMin, true
	case CutMassMax:
		return c.MassMax, true
	}
	return Limit{}, false
}

// Values are the discriminators computed for one candidate.
type Values struct {
	Chi2Prim     [MaxDaughters]float64
	Distance     float64
	CosMomSum    [MaxDaughters]float64
	DistanceToSV float64
	Chi2Geo      float64
	L            float64
	DL           float64
	LdL          float64
	IsFromPV     bool
	CosTopo      float64
	Chi2Topo     float64
	Mass         float64
	MassErr      float64
}

// Evaluate applies every cut to a fully computed candidate with n
// daughters. It returns the first failing cut in a fixed order; the
// accept/reject outcome does not depend on that order.
func (c CutSet) Evaluate(v Values, n int) (bool, CutName) {
	for s := 0; s < n && s < MaxDaughters; s++ {
		if !c.Pass(CutChi2Prim, s, v.Chi2Prim[s]) {
			return false, CutChi2Prim
		}
	}
	if !c.Pass(CutDistance, 0, v.Distance) {
		return false, CutDistance
	}
	if n == 3 && !c.Pass(CutDistanceToSV, 0, v.DistanceToSV) {
		return false, CutDistanceToSV
	}
	for s := 0; s < n && s < MaxDaughters; s++ {
		if !c.Pass(CutCosMomSum, s, v.CosMomSum[s]) {
			return false, CutCosMomSum
		}
	}
	fromPV := 0.0
	if v.IsFromPV {
		fromPV = 1
	}
	checks := []struct {
		name CutName
		v    float64
	}{
		{CutChi2Geo, v.Chi2Geo},
		{CutLdL, v.LdL},
		{CutFromPV, fromPV},
		{CutCosTopo, v.CosTopo},
		{CutChi2Topo, v.Chi2Topo},
		{CutMassMin, v.Mass},
		{CutMassMax, v.Mass},
	}
	for _, ch := range checks {
		if !c.Pass(ch.name, 0, ch.v) {
			return false, ch.name
		}
	}
	return true, ""
}

// With returns a copy of the cut set with one threshold replaced. For
// CutFromPV any non-zero value enables the rejection.
func (c CutSet) With(name CutName, slot int, value float64) (CutSet, error) {
	out := c
	if (name == CutChi2Prim || name == CutCosMomSum) && (slot < 0 || slot >= MaxDaughters) {
		return c, fmt.Errorf("%w: %s slot %d out of range", ErrUnknownCut, name, slot)
	}
	switch name {
	case CutChi2Prim:
		out.Chi2Prim[slot] = At(value)
	case CutCosMomSum:
		out.CosMomSum[slot] = At(value)
	case CutDistance:
		out.Distance = At(value)
	case CutChi2Geo:
		out.Chi2Geo = At(value)
	case CutLdL:
		out.LdL = At(value)
	case CutFromPV:
		out.RejectFromPV = value != 0
	case CutCosTopo:
		out.CosTopo = At(value)
	case CutChi2Topo:
		out.Chi2Topo = At(value)
	case CutDistanceToSV:
		out.DistanceToSV = At(value)
	case CutMassMin:
		out.MassMin = At(value)
	case CutMassMax:
		out.MassMax = At(value)
	default:
		return c, fmt.Errorf("%w: %q", ErrUnknownCut, name)
	}
	return out, nil
}

// ParseCutName validates a cut name from user input.
func ParseCutName(s string) (CutName, error) {
	n := CutName(s)
	switch n {
	case CutChi2Prim, CutDistance, CutCosMomSum, CutChi2Geo, CutLdL, CutFromPV,
		CutCosTopo, CutChi2Topo, CutDistanceToSV, CutMassMin, CutMassMax:
		return n, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCut, s)
}
