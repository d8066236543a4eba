package finder

import (
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/simplefinder/internal/kf"
	"github.com/banshee-data/simplefinder/internal/monitoring"
	"github.com/banshee-data/simplefinder/internal/pdg"
	"github.com/banshee-data/simplefinder/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func lambdaDecay(t *testing.T) Decay {
	t.Helper()
	d, err := NewDecay("lambda", pdg.CodeLambda, pdg.MassLambda, 2212, -211)
	require.NoError(t, err)
	return d
}

func k0Decay(t *testing.T) Decay {
	t.Helper()
	d, err := NewDecay("k0short", pdg.CodeK0Short, pdg.MassK0Short, 211, -211)
	require.NoError(t, err)
	return d
}

func hypertritonDecay(t *testing.T) Decay {
	t.Helper()
	d, err := NewDecay("hypertriton3", pdg.CodeHypertriton, pdg.MassHypertriton, 1000010020, 2212, -211)
	require.NoError(t, err)
	return d
}

func run(t *testing.T, f *Finder, tracks []kf.Track, d Decay, c CutSet) []Candidate {
	t.Helper()
	f.Init(tracks, testutil.Origin(0.01))
	require.NoError(t, f.SetDecay(d))
	f.SetCuts(c)
	require.NoError(t, f.FindParticles())
	return f.MotherCandidates()
}

func TestFindParticles_CrossingPairFiveUnitsOut(t *testing.T) {
	decay := r3.Vec{X: 5}
	tracks := testutil.V0(decay, r3.Vec{X: 1, Y: 0.3}, r3.Vec{X: 0.3, Y: -0.3}, pdg.Proton, pdg.PionMinus)

	got := run(t, New(), tracks, lambdaDecay(t), CutSet{})
	require.Len(t, got, 1)
	c := got[0]

	assert.InDelta(t, 1.0, c.CosTopo, 1e-9)
	assert.InDelta(t, 0.0, c.Chi2Geo, 1e-9)
	assert.InDelta(t, 0.0, c.Distance, 1e-9)
	assert.InDelta(t, 5.0, c.L, 1e-9)
	assert.Greater(t, c.LdL, 5.0)
	assert.False(t, c.IsFromPV)
	assert.Equal(t, []int{0, 1}, c.Daughters)
	assert.Equal(t, pdg.CodeLambda, c.PDG)
	assert.Equal(t, 0, c.Charge)
	assert.Equal(t, 1, c.NDF)
	assert.InDelta(t, 1.0, c.Prob, 1e-9)
	assert.InDelta(t, 5.0, c.Params[kf.IX], 1e-9)
	assert.InDelta(t, 1.3, c.Params[kf.IPx], 1e-12)
	for s := 0; s < 2; s++ {
		assert.Greater(t, c.CosMomSum[s], 0.0)
		assert.Greater(t, c.Chi2Prim[s], 18.42)
	}
}

func TestFindParticles_SwappedInputOrder(t *testing.T) {
	plus := testutil.TrackThrough(r3.Vec{X: 6, Y: 1, Z: 0.02}, r3.Vec{X: 0.8, Y: 0.4}, 1, pdg.PionPlus)
	minus := testutil.TrackThrough(r3.Vec{X: 6, Y: 1, Z: -0.02}, r3.Vec{X: 0.5, Y: -0.1, Z: 0.1}, 2, pdg.PionMinus)

	a := run(t, New(), []kf.Track{plus, minus}, k0Decay(t), CutSet{})
	b := run(t, New(), []kf.Track{minus, plus}, k0Decay(t), CutSet{})
	require.Len(t, a, 1)
	require.Len(t, b, 1)

	assert.Greater(t, a[0].Chi2Geo, 0.0)
	assert.InDelta(t, a[0].Chi2Geo, b[0].Chi2Geo, 1e-9*math.Max(1, a[0].Chi2Geo))
	assert.InDelta(t, a[0].L, b[0].L, 1e-9)
	assert.InDelta(t, a[0].LdL, b[0].LdL, 1e-6)
	assert.InDelta(t, a[0].Distance, b[0].Distance, 1e-12)
	assert.Equal(t, []int{0, 1}, a[0].Daughters)
	assert.Equal(t, []int{1, 0}, b[0].Daughters)
}

func TestFindParticles_DistanceBoundaryInclusive(t *testing.T) {
	tracks := []kf.Track{
		testutil.TrackThrough(r3.Vec{X: 5, Z: 0.25}, r3.Vec{X: 1, Y: 0.2}, 1, pdg.Proton),
		testutil.TrackThrough(r3.Vec{X: 5, Z: -0.25}, r3.Vec{X: 1, Y: -0.2}, 1, pdg.PionMinus),
	}
	const eps = 1e-6

	tests := []struct {
		name  string
		limit float64
		want  int
	}{
		{"threshold above distance", 0.5 + eps, 1},
		{"threshold below distance", 0.5 - eps, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New()
			got := run(t, f, tracks, lambdaDecay(t), CutSet{Distance: At(tt.limit)})
			if len(got) != tt.want {
				t.Fatalf("got %d candidates, want %d", len(got), tt.want)
			}
			if tt.want == 1 {
				testutil.AssertNear(t, "Distance", got[0].Distance, 0.5, 1e-9)
			} else if f.Stats().Rejected[CutDistance] != 1 {
				t.Errorf("Rejected[distance] = %d, want 1", f.Stats().Rejected[CutDistance])
			}
		})
	}
}

func TestFindParticles_ThreeBody(t *testing.T) {
	sv := r3.Vec{X: 4, Y: 3}
	cuts := CutSet{Distance: At(0.1), Chi2Geo: At(11.34), DistanceToSV: At(0.1)}

	deuteron := testutil.TrackThrough(sv, r3.Vec{X: 1.2, Y: 0.6}, 1, pdg.Deuteron)
	proton := testutil.TrackThrough(sv, r3.Vec{X: 0.5, Y: 0.7, Z: 0.1}, 1, pdg.Proton)

	t.Run("third track through vertex", func(t *testing.T) {
		pion := testutil.TrackThrough(sv, r3.Vec{X: 0.1, Y: 0.2, Z: -0.1}, 1, pdg.PionMinus)
		got := run(t, New(), []kf.Track{deuteron, proton, pion}, hypertritonDecay(t), cuts)
		require.Len(t, got, 1)
		assert.Equal(t, []int{0, 1, 2}, got[0].Daughters)
		assert.Equal(t, 3, got[0].NDF)
		assert.Equal(t, 1, got[0].Charge)
		assert.InDelta(t, 0, got[0].DistanceToSV, 1e-9)
		assert.InDelta(t, 0, got[0].Chi2Geo, 1e-9)
		assert.Greater(t, got[0].CosTopo, 0.99)
	})

	t.Run("third track misses vertex", func(t *testing.T) {
		pion := testutil.TrackThrough(r3.Vec{X: 4, Y: 3, Z: 2}, r3.Vec{X: 0.1, Y: 0.2}, 1, pdg.PionMinus)
		f := New()
		got := run(t, f, []kf.Track{deuteron, proton, pion}, hypertritonDecay(t), cuts)
		assert.Empty(t, got)
		assert.Equal(t, 1, f.Stats().Rejected[CutDistanceToSV])
		assert.Equal(t, 1, f.Stats().Combinations)
	})
}

func TestFindParticles_MissingSpecies(t *testing.T) {
	tracks := []kf.Track{
		testutil.TrackThrough(r3.Vec{X: 3}, r3.Vec{X: 1}, 1, pdg.Proton),
		testutil.TrackThrough(r3.Vec{Y: 3}, r3.Vec{Y: 1}, 1, pdg.Proton),
	}
	f := New()
	got := run(t, f, tracks, lambdaDecay(t), CutSet{})
	if len(got) != 0 {
		t.Errorf("got %d candidates, want 0", len(got))
	}
	if f.Stats().Combinations != 0 {
		t.Errorf("Combinations = %d, want 0", f.Stats().Combinations)
	}

	got = run(t, f, nil, lambdaDecay(t), CutSet{})
	if len(got) != 0 {
		t.Errorf("empty event: got %d candidates, want 0", len(got))
	}
}

func TestFindParticles_Preconditions(t *testing.T) {
	f := New()
	if err := f.FindParticles(); !errors.Is(err, ErrNotInitialised) {
		t.Errorf("before Init: err = %v, want ErrNotInitialised", err)
	}
	f.Init(nil, testutil.Origin(0.01))
	if err := f.FindParticles(); !errors.Is(err, ErrNoDecay) {
		t.Errorf("without decay: err = %v, want ErrNoDecay", err)
	}
	testutil.AssertNoError(t, f.SetDecay(lambdaDecay(t)))
	if err := f.FindParticles(); !errors.Is(err, ErrNoCuts) {
		t.Errorf("without cuts: err = %v, want ErrNoCuts", err)
	}
	f.SetCuts(CutSet{})
	testutil.AssertNoError(t, f.FindParticles())

	err := f.SetDecay(Decay{Name: "one", Daughters: []Daughter{{Species: pdg.Proton}}})
	if !errors.Is(err, ErrInvalidDecay) {
		t.Errorf("SetDecay(one daughter) err = %v, want ErrInvalidDecay", err)
	}
	if d, _ := f.Decay(); d.Name != "lambda" {
		t.Errorf("invalid SetDecay replaced the decay with %q", d.Name)
	}
}

// randomEvent builds a few displaced V0s, whose momenta sum along the line
// from the origin to the decay point, on top of prompt tracks.
func randomEvent(seed uint64) []kf.Track {
	rng := rand.New(rand.NewPCG(seed, 7))
	vec := func(scale float64) r3.Vec {
		return r3.Vec{X: (rng.Float64()*2 - 1) * scale, Y: (rng.Float64()*2 - 1) * scale, Z: (rng.Float64()*2 - 1) * scale}
	}
	var tracks []kf.Track
	for i := 0; i < 4; i++ {
		dir := r3.Unit(r3.Add(r3.Vec{X: 1}, vec(0.3)))
		decay := r3.Scale(3+rng.Float64()*10, dir)
		q := r3.Scale(0.4, r3.Unit(r3.Cross(dir, r3.Add(r3.Vec{Z: 1}, vec(0.2)))))
		pa := r3.Add(r3.Scale(1.2, dir), q)
		pb := r3.Sub(r3.Scale(0.3, dir), q)
		// Small offsets keep the pair close but not exactly crossing.
		tracks = append(tracks,
			testutil.TrackThrough(r3.Add(decay, vec(0.001)), pa, rng.Float64()*3, pdg.Proton),
			testutil.TrackThrough(r3.Add(decay, vec(0.001)), pb, rng.Float64()*3, pdg.PionMinus))
	}
	for i := 0; i < 6; i++ {
		species := pdg.Proton
		if i%2 == 1 {
			species = pdg.PionMinus
		}
		tracks = append(tracks, testutil.TrackThrough(vec(0.005), vec(1), 1+rng.Float64(), species))
	}
	return tracks
}

func TestFindParticles_Deterministic(t *testing.T) {
	tracks := randomEvent(1)
	cuts := CutSet{Distance: At(0.5), Chi2Geo: At(100)}
	f := New()
	first := run(t, f, tracks, lambdaDecay(t), cuts)
	require.NotEmpty(t, first)

	require.NoError(t, f.FindParticles())
	if diff := cmp.Diff(first, f.MotherCandidates()); diff != "" {
		t.Errorf("second pass differs (-first +second):\n%s", diff)
	}
	again := run(t, New(), tracks, lambdaDecay(t), cuts)
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("fresh finder differs (-first +fresh):\n%s", diff)
	}
}

func TestFindParticles_LooseningNeverRemoves(t *testing.T) {
	tight := CutSet{
		Chi2Prim:     [MaxDaughters]Limit{At(18.42), At(18.42)},
		Distance:     At(0.05),
		CosMomSum:    [MaxDaughters]Limit{At(0.5), At(0.5)},
		Chi2Geo:      At(3),
		LdL:          At(5),
		RejectFromPV: true,
		CosTopo:      At(0.99),
		Chi2Topo:     At(50),
		MassMin:      At(0.5),
		MassMax:      At(5),
	}
	loosen := []struct {
		name  CutName
		slot  int
		value float64
	}{
		{CutChi2Prim, 0, 0},
		{CutChi2Prim, 1, 0},
		{CutDistance, 0, 10},
		{CutCosMomSum, 0, -1},
		{CutCosMomSum, 1, -1},
		{CutChi2Geo, 0, 1e12},
		{CutLdL, 0, 0},
		{CutFromPV, 0, 0},
		{CutCosTopo, 0, -1},
		{CutChi2Topo, 0, 1e12},
		{CutMassMin, 0, -10},
		{CutMassMax, 0, 100},
	}

	accepted := 0
	for seed := uint64(1); seed <= 3; seed++ {
		tracks := randomEvent(seed)
		base := ids(run(t, New(), tracks, lambdaDecay(t), tight))
		accepted += len(base)
		for _, l := range loosen {
			cuts, err := tight.With(l.name, l.slot, l.value)
			require.NoError(t, err)
			got := ids(run(t, New(), tracks, lambdaDecay(t), cuts))
			for id := range base {
				if _, ok := got[id]; !ok {
					t.Errorf("seed %d: loosening %s[%d] removed candidate %v", seed, l.name, l.slot, id)
				}
			}
		}
	}
	if accepted == 0 {
		t.Fatal("tight cuts accepted nothing; the event generator no longer exercises the cuts")
	}
}

func ids(cs []Candidate) map[[2]int]struct{} {
	out := make(map[[2]int]struct{}, len(cs))
	for _, c := range cs {
		out[[2]int{c.Daughters[0], c.Daughters[1]}] = struct{}{}
	}
	return out
}

func TestFindParticles_DegenerateInputs(t *testing.T) {
	t.Run("singular covariance", func(t *testing.T) {
		tracks := testutil.V0(r3.Vec{X: 5}, r3.Vec{X: 1, Y: 0.3}, r3.Vec{X: 0.3, Y: -0.3}, pdg.Proton, pdg.PionMinus)
		for i := range tracks {
			tracks[i].Cov = [21]float64{}
		}
		f := New()
		f.Init(tracks, kf.Vertex{})
		require.NoError(t, f.SetDecay(lambdaDecay(t)))
		f.SetCuts(CutSet{Chi2Geo: At(3)})
		require.NoError(t, f.FindParticles())
		assert.Empty(t, f.MotherCandidates())
		assert.Equal(t, 1, f.Stats().Rejected[CutChi2Geo])
	})

	t.Run("parallel tracks", func(t *testing.T) {
		tracks := []kf.Track{
			testutil.TrackThrough(r3.Vec{X: 5}, r3.Vec{X: 1}, 1, pdg.Proton),
			testutil.TrackThrough(r3.Vec{X: 5, Y: 1}, r3.Vec{X: 0.5}, 1, pdg.PionMinus),
		}
		f := New()
		got := run(t, f, tracks, lambdaDecay(t), CutSet{Distance: At(0.5)})
		assert.Empty(t, got)
		assert.Equal(t, 1, f.Stats().Rejected[CutDistance])

		got = run(t, f, tracks, lambdaDecay(t), CutSet{})
		require.Len(t, got, 1)
		assert.InDelta(t, 1.0, got[0].Distance, 1e-9)
	})

	t.Run("zero momentum", func(t *testing.T) {
		tracks := []kf.Track{
			testutil.TrackThrough(r3.Vec{X: 5}, r3.Vec{X: 1}, 1, pdg.Proton),
			testutil.TrackThrough(r3.Vec{X: 5}, r3.Vec{X: -1}, 1, pdg.PionMinus),
		}
		got := run(t, New(), tracks, lambdaDecay(t), CutSet{CosTopo: At(0)})
		assert.Empty(t, got)
	})
}

func TestFindParticles_DuplicatePolicy(t *testing.T) {
	same, err := NewDecay("pipi", 0, 0, 211, 211)
	require.NoError(t, err)
	tracks := testutil.V0(r3.Vec{X: 4, Y: 1}, r3.Vec{X: 1, Y: 0.2}, r3.Vec{X: 0.4, Y: 0.3}, pdg.PionPlus, pdg.PionPlus)

	keep := run(t, New(), tracks, same, CutSet{})
	require.Len(t, keep, 2)
	assert.Equal(t, []int{0, 1}, keep[0].Daughters)
	assert.Equal(t, []int{1, 0}, keep[1].Daughters)
	assert.InDelta(t, keep[0].Chi2Geo, keep[1].Chi2Geo, 1e-9)
	assert.InDelta(t, keep[0].L, keep[1].L, 1e-9)
	assert.NotEqual(t, keep[0].ID, keep[1].ID)

	f := New(WithDuplicatePolicy(SuppressDuplicates))
	suppressed := run(t, f, tracks, same, CutSet{})
	require.Len(t, suppressed, 1)
	assert.Equal(t, []int{0, 1}, suppressed[0].Daughters)
	assert.Equal(t, 1, f.Stats().Duplicates)
}

func TestInit_ResetsEvent(t *testing.T) {
	tracks := testutil.V0(r3.Vec{X: 5}, r3.Vec{X: 1, Y: 0.3}, r3.Vec{X: 0.3, Y: -0.3}, pdg.Proton, pdg.PionMinus)
	f := New()
	require.Len(t, run(t, f, tracks, lambdaDecay(t), CutSet{}), 1)

	f.Init(nil, testutil.Origin(0.01))
	assert.Empty(t, f.MotherCandidates())
	assert.Empty(t, f.Tracks())
	assert.Equal(t, 0, f.Index().Len())

	// The decay and cuts survive Init.
	require.NoError(t, f.FindParticles())
	assert.Empty(t, f.MotherCandidates())
}

func TestInit_CopiesTracks(t *testing.T) {
	tracks := testutil.V0(r3.Vec{X: 5}, r3.Vec{X: 1, Y: 0.3}, r3.Vec{X: 0.3, Y: -0.3}, pdg.Proton, pdg.PionMinus)
	f := New()
	f.Init(tracks, testutil.Origin(0.01))
	tracks[0].PDG = 0
	if got := f.Tracks()[0].PDG; got != 2212 {
		t.Errorf("Tracks()[0].PDG = %d after caller mutation, want 2212", got)
	}
	if got := f.Index().Of(pdg.Proton); len(got) != 1 {
		t.Errorf("proton bucket = %v, want one entry", got)
	}
}

func TestInitFromInput_MatchesInit(t *testing.T) {
	tracks := randomEvent(2)
	pv := testutil.Origin(0.01)
	cuts := CutSet{Distance: At(0.5)}

	a := New()
	a.Init(tracks, pv)
	require.NoError(t, a.SetDecay(lambdaDecay(t)))
	a.SetCuts(cuts)
	require.NoError(t, a.FindParticles())

	b := New()
	b.InitFromInput(Input{EventID: "ev-2", Tracks: tracks, PrimaryVertex: pv})
	require.NoError(t, b.SetDecay(lambdaDecay(t)))
	b.SetCuts(cuts)
	require.NoError(t, b.FindParticles())

	if diff := cmp.Diff(a.Index(), b.Index()); diff != "" {
		t.Errorf("index differs:\n%s", diff)
	}
	opt := cmpopts.IgnoreFields(Candidate{}, "ID", "EventID")
	if diff := cmp.Diff(a.MotherCandidates(), b.MotherCandidates(), opt); diff != "" {
		t.Errorf("candidates differ:\n%s", diff)
	}
	for _, c := range b.MotherCandidates() {
		if c.EventID != "ev-2" {
			t.Errorf("EventID = %q, want ev-2", c.EventID)
		}
	}
}

func TestMasses(t *testing.T) {
	decay := r3.Vec{X: 5}
	tracks := testutil.V0(decay, r3.Vec{X: 1, Y: 0.3}, r3.Vec{X: 0.3, Y: -0.3}, pdg.Proton, pdg.PionMinus)
	f := New()
	got := run(t, f, tracks, lambdaDecay(t), CutSet{})
	require.Len(t, got, 1)

	pa, pb := tracks[0].Momentum, tracks[1].Momentum
	ea := math.Sqrt(r3.Norm2(pa) + pdg.Proton.Mass()*pdg.Proton.Mass())
	eb := math.Sqrt(r3.Norm2(pb) + pdg.PionMinus.Mass()*pdg.PionMinus.Mass())
	want := math.Sqrt((ea+eb)*(ea+eb) - r3.Norm2(r3.Add(pa, pb)))

	assert.Equal(t, []float64{got[0].Mass}, f.Masses())
	assert.InDelta(t, want, got[0].Mass, 1e-9)
	assert.Greater(t, got[0].MassErr, 0.0)

	windowed := run(t, New(), tracks, lambdaDecay(t), CutSet{MassMin: At(want + 0.01)})
	assert.Empty(t, windowed)
}

func TestFindParticles_UniformField(t *testing.T) {
	// A pair generated at a common point and transported away with the
	// helix model must be recombined at that point.
	field := kf.UniformField{Bz: 5}
	eng := kf.NewEngine(field)
	decay := r3.Vec{X: 8, Y: 2}
	mk := func(mom r3.Vec, s pdg.Species, ds float64) kf.Track {
		tr := testutil.TrackThrough(decay, mom, 0, s)
		p := eng.TransportToDS(eng.FromTrack(tr, s.Mass()), ds)
		tr.Position, tr.Momentum = p.Position(), p.Momentum()
		return tr
	}
	tracks := []kf.Track{
		mk(r3.Vec{X: 1, Y: 0.4, Z: 0.1}, pdg.Proton, 3),
		mk(r3.Vec{X: 0.2, Y: -0.1}, pdg.PionMinus, 10),
	}

	got := run(t, New(WithField(field)), tracks, lambdaDecay(t), CutSet{Distance: At(1e-3)})
	require.Len(t, got, 1)
	assert.InDelta(t, decay.X, got[0].Params[kf.IX], 1e-4)
	assert.InDelta(t, decay.Y, got[0].Params[kf.IY], 1e-4)
	assert.InDelta(t, 0, got[0].Chi2Geo, 1e-3)
}

func TestWithAlgebra(t *testing.T) {
	spy := &countingAlgebra{Engine: kf.NewEngine(nil)}
	tracks := testutil.V0(r3.Vec{X: 5}, r3.Vec{X: 1, Y: 0.3}, r3.Vec{X: 0.3, Y: -0.3}, pdg.Proton, pdg.PionMinus)
	got := run(t, New(WithAlgebra(spy), WithAlgebra(nil)), tracks, lambdaDecay(t), CutSet{})
	require.Len(t, got, 1)
	assert.Equal(t, 1, spy.combines)
	assert.Equal(t, 1, spy.pairs)
}

type countingAlgebra struct {
	*kf.Engine
	combines int
	pairs    int
}

func (c *countingAlgebra) Combine(d ...kf.Particle) kf.Particle {
	c.combines++
	return c.Engine.Combine(d...)
}

func (c *countingAlgebra) ClosestApproach(a, b kf.Particle) (kf.Particle, kf.Particle) {
	c.pairs++
	return c.Engine.ClosestApproach(a, b)
}
