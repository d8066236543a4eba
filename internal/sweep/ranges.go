// Package sweep scans selection thresholds over a fixed set of events and
// reports how many candidates each setting keeps.
package sweep

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/simplefinder/internal/finder"
)

// maxValues bounds a single range and the expanded grid.
const maxValues = 10000

// Range is an inclusive "start:end:step" threshold range.
type Range struct {
	Start, End, Step float64
}

// ParseRange parses "start:end:step".
func ParseRange(s string) (Range, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Range{}, fmt.Errorf("range %q: expected start:end:step", s)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Range{}, fmt.Errorf("range %q: %w", s, err)
		}
		vals[i] = v
	}
	r := Range{Start: vals[0], End: vals[1], Step: vals[2]}
	if r.Step <= 0 {
		return Range{}, fmt.Errorf("range %q: step must be positive", s)
	}
	if r.End < r.Start {
		return Range{}, fmt.Errorf("range %q: end is below start", s)
	}
	return r, nil
}

// Values expands the range. Values are rounded to 1e-6 so that repeated
// steps do not accumulate float noise; End is included when it lies on a step.
func (r Range) Values() ([]float64, error) {
	count := math.Floor((r.End-r.Start)/r.Step+1e-9) + 1
	if math.IsNaN(count) || math.IsInf(count, 0) || count > maxValues {
		return nil, fmt.Errorf("range %g:%g:%g expands to %g values (max %d)", r.Start, r.End, r.Step, count, maxValues)
	}
	n := int(count)
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := r.Start + float64(i)*r.Step
		out = append(out, math.Round(v*1e6)/1e6)
	}
	return out, nil
}

// ParseCSVFloat64s parses a comma-separated list. Empty input gives nil.
func ParseCSVFloat64s(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseValues accepts either a range or a comma-separated list.
func ParseValues(s string) ([]float64, error) {
	if strings.Contains(s, ":") {
		r, err := ParseRange(s)
		if err != nil {
			return nil, err
		}
		return r.Values()
	}
	vals, err := ParseCSVFloat64s(s)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("no values in %q", s)
	}
	return vals, nil
}

// Param is one scanned threshold. Slot only matters for the per-daughter
// cuts (chi2_prim, cos_mom_sum).
type Param struct {
	Cut    finder.CutName
	Slot   int
	Values []float64
}

// Label is the column name used in CSV output, e.g. "chi2_prim[1]".
func (p Param) Label() string {
	if p.Cut == finder.CutChi2Prim || p.Cut == finder.CutCosMomSum {
		return fmt.Sprintf("%s[%d]", p.Cut, p.Slot)
	}
	return string(p.Cut)
}

// ParseParam parses "cut=values" or "cut[slot]=values", where values is a
// range or a list: "ldl=0:10:1", "chi2_prim[1]=3,5,10".
func ParseParam(s string) (Param, error) {
	name, vals, ok := strings.Cut(s, "=")
	if !ok {
		return Param{}, fmt.Errorf("sweep %q: expected cut=values", s)
	}
	name = strings.TrimSpace(name)
	slot := 0
	if open := strings.IndexByte(name, '['); open >= 0 {
		if !strings.HasSuffix(name, "]") {
			return Param{}, fmt.Errorf("sweep %q: unterminated slot", s)
		}
		n, err := strconv.Atoi(name[open+1 : len(name)-1])
		if err != nil {
			return Param{}, fmt.Errorf("sweep %q: bad slot: %w", s, err)
		}
		if n < 0 || n >= finder.MaxDaughters {
			return Param{}, fmt.Errorf("sweep %q: slot %d out of range", s, n)
		}
		slot = n
		name = name[:open]
	}
	cut, err := finder.ParseCutName(name)
	if err != nil {
		return Param{}, fmt.Errorf("sweep %q: %w", s, err)
	}
	values, err := ParseValues(vals)
	if err != nil {
		return Param{}, fmt.Errorf("sweep %q: %w", s, err)
	}
	return Param{Cut: cut, Slot: slot, Values: values}, nil
}

// Expand returns the cartesian product of the parameter values, first
// parameter varying slowest.
func Expand(params []Param) ([][]float64, error) {
	if len(params) == 0 {
		return nil, nil
	}
	total := 1
	for _, p := range params {
		if len(p.Values) == 0 {
			return nil, fmt.Errorf("sweep %s has no values", p.Label())
		}
		total *= len(p.Values)
		if total > maxValues {
			return nil, fmt.Errorf("sweep grid exceeds %d combinations", maxValues)
		}
	}
	out := make([][]float64, 0, total)
	var rec func(i int, cur []float64)
	rec = func(i int, cur []float64) {
		if i == len(params) {
			out = append(out, append([]float64(nil), cur...))
			return
		}
		for _, v := range params[i].Values {
			rec(i+1, append(cur, v))
		}
	}
	rec(0, make([]float64, 0, len(params)))
	return out, nil
}
