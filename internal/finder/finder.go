package finder

import (
	"fmt"
	"slices"

	"github.com/banshee-data/simplefinder/internal/kf"
	"github.com/banshee-data/simplefinder/internal/monitoring"
	"github.com/banshee-data/simplefinder/internal/pdg"
)

// DuplicatePolicy controls whether the same daughter index set may be
// accepted more than once in a pass.
type DuplicatePolicy int

const (
	// KeepDuplicates stores every accepted combination.
	KeepDuplicates DuplicatePolicy = iota
	// SuppressDuplicates drops a combination whose daughter index set was
	// already accepted in the same pass.
	SuppressDuplicates
)

// ParseDuplicatePolicy maps "keep" and "suppress" to a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "keep":
		return KeepDuplicates, nil
	case "suppress":
		return SuppressDuplicates, nil
	}
	return KeepDuplicates, fmt.Errorf("unknown duplicate policy %q", s)
}

func (p DuplicatePolicy) String() string {
	if p == SuppressDuplicates {
		return "suppress"
	}
	return "keep"
}

// Stats summarises the last FindParticles pass.
type Stats struct {
	Tracks       map[pdg.Species]int
	Combinations int
	Accepted     int
	Duplicates   int
	Rejected     map[CutName]int
}

func (s Stats) clone() Stats {
	out := s
	out.Tracks = make(map[pdg.Species]int, len(s.Tracks))
	for k, v := range s.Tracks {
		out.Tracks[k] = v
	}
	out.Rejected = make(map[CutName]int, len(s.Rejected))
	for k, v := range s.Rejected {
		out.Rejected[k] = v
	}
	return out
}

// Option configures a Finder.
type Option func(*Finder)

// WithAlgebra replaces the particle-state algebra. The default is a
// straight-line kf.Engine.
func WithAlgebra(a Algebra) Option {
	return func(f *Finder) {
		if a != nil {
			f.algebra = a
		}
	}
}

// WithField uses a kf.Engine with the given field model.
func WithField(field kf.Field) Option {
	return func(f *Finder) { f.algebra = kf.NewEngine(field) }
}

// WithDuplicatePolicy sets the duplicate policy.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(f *Finder) { f.duplicates = p }
}

// Finder searches one event at a time for the configured decay.
type Finder struct {
	algebra    Algebra
	duplicates DuplicatePolicy

	decay *Decay
	cuts  *CutSet

	eventID string
	tracks  []kf.Track
	pv      kf.Vertex
	index   TrackIndex
	loaded  bool

	store Store
	stats Stats
}

// New returns a Finder with no event, decay or cuts loaded.
func New(opts ...Option) *Finder {
	f := &Finder{algebra: kf.NewEngine(nil)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Init loads an event. The tracks are copied, the species index is rebuilt
// and previous results are discarded.
func (f *Finder) Init(tracks []kf.Track, pv kf.Vertex) {
	f.initEvent("", tracks, pv)
}

// InitFromInput is Init for a packaged event.
func (f *Finder) InitFromInput(in Input) {
	f.initEvent(in.EventID, in.Tracks, in.PrimaryVertex)
}

func (f *Finder) initEvent(eventID string, tracks []kf.Track, pv kf.Vertex) {
	f.eventID = eventID
	f.tracks = slices.Clone(tracks)
	f.pv = pv
	f.store.Reset()
	f.stats = Stats{}
	f.SortTracks()
	f.loaded = true
}

// SortTracks rebuilds the species index from the loaded tracks.
func (f *Finder) SortTracks() {
	f.index = BuildIndex(f.tracks)
}

// Index returns the species index of the loaded event.
func (f *Finder) Index() TrackIndex { return f.index }

// SetDecay validates and stores a copy of d.
func (f *Finder) SetDecay(d Decay) error {
	if err := d.Validate(); err != nil {
		return err
	}
	dc := d.clone()
	f.decay = &dc
	return nil
}

// SetCuts stores a copy of c.
func (f *Finder) SetCuts(c CutSet) {
	f.cuts = &c
}

// Decay returns the configured decay, if any.
func (f *Finder) Decay() (Decay, bool) {
	if f.decay == nil {
		return Decay{}, false
	}
	return f.decay.clone(), true
}

// Cuts returns the configured cut set, if any.
func (f *Finder) Cuts() (CutSet, bool) {
	if f.cuts == nil {
		return CutSet{}, false
	}
	return *f.cuts, true
}

// Tracks returns a copy of the loaded track collection.
func (f *Finder) Tracks() []kf.Track { return slices.Clone(f.tracks) }

// PrimaryVertex returns the loaded primary vertex.
func (f *Finder) PrimaryVertex() kf.Vertex { return f.pv }

// MotherCandidates returns the accepted candidates of the last pass in
// discovery order.
func (f *Finder) MotherCandidates() []Candidate { return f.store.Candidates() }

// Masses returns the invariant masses of the accepted candidates. It is a
// diagnostic view of MotherCandidates.
func (f *Finder) Masses() []float64 { return f.store.Masses() }

// Stats returns counters for the last pass.
func (f *Finder) Stats() Stats { return f.stats.clone() }

// daughterState is a daughter that survived its own cuts.
type daughterState struct {
	index    int
	particle kf.Particle
	chi2Prim float64
}

// FindParticles runs one search pass over the loaded event. Results of a
// previous pass on the same event are replaced.
func (f *Finder) FindParticles() error {
	switch {
	case !f.loaded:
		monitoring.Logf("finder: refusing pass: %v", ErrNotInitialised)
		return ErrNotInitialised
	case f.decay == nil:
		monitoring.Logf("finder: refusing pass: %v", ErrNoDecay)
		return ErrNoDecay
	case f.cuts == nil:
		monitoring.Logf("finder: refusing pass: %v", ErrNoCuts)
		return ErrNoCuts
	}

	f.store.Reset()
	f.stats = Stats{Tracks: f.index.Counts(), Rejected: make(map[CutName]int)}

	p := pass{f: f, decay: f.decay, cuts: f.cuts}
	if f.duplicates == SuppressDuplicates {
		p.seen = make(map[[MaxDaughters]int]struct{})
	}
	slots := make([][]daughterState, len(p.decay.Daughters))
	for s := range slots {
		slots[s] = p.daughters(s)
	}
	if len(p.decay.Daughters) == 2 {
		p.twoBody(slots[0], slots[1])
	} else {
		p.threeBody(slots[0], slots[1], slots[2])
	}

	f.stats.Accepted = f.store.Len()
	monitoring.Debugf("finder: event %q decay %s: %d tracks, %d combinations, %d accepted",
		f.eventID, p.decay.Name, len(f.tracks), f.stats.Combinations, f.stats.Accepted)
	return nil
}

// pass holds the read-only configuration of one FindParticles call.
type pass struct {
	f     *Finder
	decay *Decay
	cuts  *CutSet
	seen  map[[MaxDaughters]int]struct{}
}

func (p *pass) reject(name CutName) {
	p.f.stats.Rejected[name]++
}

// daughters builds the states for one slot and applies its chi2-prim cut.
func (p *pass) daughters(slot int) []daughterState {
	dau := p.decay.Daughters[slot]
	idx := p.f.index.Of(dau.Species)
	out := make([]daughterState, 0, len(idx))
	for _, i := range idx {
		part := p.f.algebra.FromTrack(p.f.tracks[i], dau.Mass)
		chi := p.f.chiToPrimaryVertex(part)
		if !p.cuts.Pass(CutChi2Prim, slot, chi) {
			p.reject(CutChi2Prim)
			continue
		}
		out = append(out, daughterState{index: i, particle: part, chi2Prim: chi})
	}
	return out
}

func (p *pass) twoBody(first, second []daughterState) {
	for _, a := range first {
		for _, b := range second {
			if a.index == b.index {
				continue
			}
			p.f.stats.Combinations++
			pa, pb := p.f.paramsInPCA(a.particle, b.particle)
			pcaA, pcaB := PCAParams(pa.Params), PCAParams(pb.Params)

			var v Values
			v.Chi2Prim[0], v.Chi2Prim[1] = a.chi2Prim, b.chi2Prim
			v.Distance = distanceBetween(pcaA, pcaB)
			if !p.cuts.Pass(CutDistance, 0, v.Distance) {
				p.reject(CutDistance)
				continue
			}
			v.CosMomSum = cosMomentumSum(pcaA, pcaB)
			mother := p.f.constructMother(p.decay.MotherPDG, pa, pb)
			p.finish(mother, v, []int{a.index, b.index})
		}
	}
}

func (p *pass) threeBody(first, second, third []daughterState) {
	for _, a := range first {
		for _, b := range second {
			if a.index == b.index {
				continue
			}
			pa, pb := p.f.paramsInPCA(a.particle, b.particle)
			pcaA, pcaB := PCAParams(pa.Params), PCAParams(pb.Params)
			dist := distanceBetween(pcaA, pcaB)
			if !p.cuts.Pass(CutDistance, 0, dist) {
				p.f.stats.Combinations += countOthers(third, a.index, b.index)
				p.reject(CutDistance)
				continue
			}
			sv := secondaryVertex(pcaA, pcaB)
			for _, c := range third {
				if c.index == a.index || c.index == b.index {
					continue
				}
				p.f.stats.Combinations++
				pc := p.f.paramsInSecondaryVertex(c.particle, sv)
				pcaC := PCAParams(pc.Params)

				var v Values
				v.Chi2Prim = [MaxDaughters]float64{a.chi2Prim, b.chi2Prim, c.chi2Prim}
				v.Distance = dist
				v.DistanceToSV = distanceToSecondaryVertex(pcaC, sv)
				if !p.cuts.Pass(CutDistanceToSV, 0, v.DistanceToSV) {
					p.reject(CutDistanceToSV)
					continue
				}
				v.CosMomSum = cosMomentumSum(pcaA, pcaB, pcaC)
				mother := p.f.constructMotherThree(p.decay.MotherPDG, pa, pb, pc)
				p.finish(mother, v, []int{a.index, b.index, c.index})
			}
		}
	}
}

// countOthers is the number of third-slot tracks that would have been
// combined with the pair (i, j).
func countOthers(third []daughterState, i, j int) int {
	n := 0
	for _, c := range third {
		if c.index != i && c.index != j {
			n++
		}
	}
	return n
}

// finish evaluates the mother discriminators, applies the full cut set
// and stores the candidate if it passes.
func (p *pass) finish(mother kf.Particle, v Values, daughters []int) {
	v.Chi2Geo = chi2Geo(mother)
	v.L, v.DL, v.LdL, v.IsFromPV = p.f.motherProperties(mother)
	v.CosTopo = p.f.cosTopo(mother)
	v.Chi2Topo = p.f.chi2Topo(mother)
	v.Mass, v.MassErr = mother.Mass()

	if ok, failed := p.cuts.Evaluate(v, len(daughters)); !ok {
		p.reject(failed)
		return
	}
	if p.seen != nil {
		key := duplicateKey(daughters)
		if _, dup := p.seen[key]; dup {
			p.f.stats.Duplicates++
			return
		}
		p.seen[key] = struct{}{}
	}
	p.f.store.Save(p.record(mother, v, daughters))
}

func duplicateKey(daughters []int) [MaxDaughters]int {
	key := [MaxDaughters]int{-1, -1, -1}
	copy(key[:], daughters)
	slices.Sort(key[:len(daughters)])
	return key
}

func (p *pass) record(mother kf.Particle, v Values, daughters []int) Candidate {
	c := Candidate{
		ID:           candidateID(p.f.eventID, p.decay.Name, daughters),
		EventID:      p.f.eventID,
		Decay:        p.decay.Name,
		PDG:          mother.PDG,
		Charge:       mother.Charge,
		Params:       mother.Params,
		Mass:         v.Mass,
		MassErr:      v.MassErr,
		Daughters:    daughters,
		Chi2Prim:     v.Chi2Prim,
		CosMomSum:    v.CosMomSum,
		Distance:     v.Distance,
		DistanceToSV: v.DistanceToSV,
		Chi2Geo:      v.Chi2Geo,
		NDF:          mother.NDF,
		Prob:         chi2Probability(v.Chi2Geo, mother.NDF),
		L:            v.L,
		DL:           v.DL,
		LdL:          v.LdL,
		IsFromPV:     v.IsFromPV,
		CosTopo:      v.CosTopo,
		Chi2Topo:     v.Chi2Topo,
	}
	if mother.Cov != nil {
		copy(c.Cov[:], kf.PackSym(mother.Cov))
	}
	return c
}
