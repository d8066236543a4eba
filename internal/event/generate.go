package event

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/simplefinder/internal/finder"
	"github.com/banshee-data/simplefinder/internal/kf"
	"github.com/banshee-data/simplefinder/internal/pdg"
)

// GeneratorConfig controls the toy event generator.
type GeneratorConfig struct {
	Decay           finder.Decay
	Field           kf.Field
	Seed            uint64
	PromptTracks    int     // background tracks from the PV per event
	SignalFraction  float64 // probability an event contains one decay
	MeanDecayLength float64 // cm
	MinMomentum     float64 // mother |p| range, GeV/c
	MaxMomentum     float64
	SigmaPos        float64 // track position resolution, cm
	SigmaMom        float64 // track momentum resolution, GeV/c
	SigmaPV         float64 // primary vertex resolution, cm
}

// DefaultGeneratorConfig returns settings that give well separated V0s.
func DefaultGeneratorConfig(d finder.Decay) GeneratorConfig {
	return GeneratorConfig{
		Decay:           d,
		Field:           kf.StraightLine{},
		Seed:            1,
		PromptTracks:    20,
		SignalFraction:  1,
		MeanDecayLength: 5,
		MinMomentum:     0.5,
		MaxMomentum:     3,
		SigmaPos:        0.01,
		SigmaMom:        0.005,
		SigmaPV:         0.005,
	}
}

// Generator produces toy events: prompt tracks from a smeared primary
// vertex plus, optionally, one displaced decay of the configured channel.
type Generator struct {
	cfg    GeneratorConfig
	rng    *rand.Rand
	engine *kf.Engine
	unit   distuv.Normal
	flight distuv.Exponential
	prompt []pdg.Species
	n      int
}

// NewGenerator validates cfg and seeds the generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if err := cfg.Decay.Validate(); err != nil {
		return nil, err
	}
	if cfg.MeanDecayLength <= 0 {
		return nil, fmt.Errorf("mean decay length must be positive, got %f", cfg.MeanDecayLength)
	}
	if cfg.MinMomentum <= 0 || cfg.MaxMomentum < cfg.MinMomentum {
		return nil, fmt.Errorf("invalid momentum range [%f, %f]", cfg.MinMomentum, cfg.MaxMomentum)
	}
	var sum float64
	for _, d := range cfg.Decay.Daughters {
		sum += d.Mass
	}
	if cfg.Decay.MotherMass <= sum {
		return nil, fmt.Errorf("mother mass %f below daughter mass sum %f", cfg.Decay.MotherMass, sum)
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	return &Generator{
		cfg:    cfg,
		rng:    rand.New(src),
		engine: kf.NewEngine(cfg.Field),
		unit:   distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		flight: distuv.Exponential{Rate: 1 / cfg.MeanDecayLength, Src: src},
		prompt: []pdg.Species{pdg.PionPlus, pdg.PionMinus, pdg.KaonPlus, pdg.KaonMinus, pdg.Proton, pdg.AntiProton},
	}, nil
}

// Generate returns n events. Signal daughters are appended after the
// prompt tracks; the returned truth lists their indices per event (nil for
// events without a decay).
func (g *Generator) Generate(n int) ([]finder.Input, [][]int) {
	events := make([]finder.Input, n)
	truth := make([][]int, n)
	for i := range events {
		events[i], truth[i] = g.next()
	}
	return events, truth
}

func (g *Generator) next() (finder.Input, []int) {
	g.n++
	pv := kf.Vertex{
		Position: r3.Vec{
			X: g.unit.Rand() * g.cfg.SigmaPV,
			Y: g.unit.Rand() * g.cfg.SigmaPV,
			Z: g.unit.Rand() * g.cfg.SigmaPV,
		},
		Cov:           kf.DiagonalVertexCov(g.cfg.SigmaPV),
		NContributors: g.cfg.PromptTracks,
	}
	in := finder.Input{EventID: fmt.Sprintf("toy-%06d", g.n), PrimaryVertex: pv}

	for j := 0; j < g.cfg.PromptTracks; j++ {
		s := g.prompt[g.rng.IntN(len(g.prompt))]
		p := r3.Scale(0.2+g.rng.Float64()*2, g.direction())
		in.Tracks = append(in.Tracks, g.track(pv.Position, p, s))
	}

	if g.rng.Float64() >= g.cfg.SignalFraction {
		return in, nil
	}
	dir := g.direction()
	pMother := r3.Scale(g.cfg.MinMomentum+g.rng.Float64()*(g.cfg.MaxMomentum-g.cfg.MinMomentum), dir)
	decay := r3.Add(pv.Position, r3.Scale(g.flight.Rand(), dir))

	var truth []int
	for j, p := range g.decayMomenta(pMother) {
		truth = append(truth, len(in.Tracks))
		in.Tracks = append(in.Tracks, g.track(decay, p, g.cfg.Decay.Daughters[j].Species))
	}
	return in, truth
}

// direction is isotropic within |cos θ| < 0.9 of the beam axis.
func (g *Generator) direction() r3.Vec {
	cosT := (g.rng.Float64()*2 - 1) * 0.9
	phi := g.rng.Float64() * 2 * math.Pi
	sinT := math.Sqrt(1 - cosT*cosT)
	return r3.Vec{X: sinT * math.Cos(phi), Y: sinT * math.Sin(phi), Z: cosT}
}

// track builds a measured track that starts at origin, is transported a
// short way along its trajectory and is smeared by the resolutions.
func (g *Generator) track(origin, p r3.Vec, s pdg.Species) kf.Track {
	t := kf.Track{Position: origin, Momentum: p, Charge: s.Charge(), PDG: s.PDG()}
	part := g.engine.TransportToDS(g.engine.FromTrack(t, s.Mass()), (1+g.rng.Float64()*4)/math.Max(r3.Norm(p), 1e-3))
	smear := func(v r3.Vec, sigma float64) r3.Vec {
		return r3.Vec{X: v.X + g.unit.Rand()*sigma, Y: v.Y + g.unit.Rand()*sigma, Z: v.Z + g.unit.Rand()*sigma}
	}
	t.Position = smear(part.Position(), g.cfg.SigmaPos)
	t.Momentum = smear(part.Momentum(), g.cfg.SigmaMom)
	t.Cov = kf.DiagonalTrackCov(g.cfg.SigmaPos, g.cfg.SigmaMom)
	return t
}

// decayMomenta returns the lab momenta of the daughters. Three-body decays
// are generated as two sequential two-body decays through an intermediate
// mass drawn uniformly over the allowed range.
func (g *Generator) decayMomenta(pMother r3.Vec) []r3.Vec {
	d := g.cfg.Decay.Daughters
	m := g.cfg.Decay.MotherMass
	if len(d) == 2 {
		a, b := g.twoBody(m, d[0].Mass, d[1].Mass, pMother)
		return []r3.Vec{a, b}
	}
	lo, hi := d[1].Mass+d[2].Mass, m-d[0].Mass
	m23 := lo + g.rng.Float64()*(hi-lo)
	a, p23 := g.twoBody(m, d[0].Mass, m23, pMother)
	b, c := g.twoBody(m23, d[1].Mass, d[2].Mass, p23)
	return []r3.Vec{a, b, c}
}

// twoBody decays a particle of mass m and lab momentum p into masses m1
// and m2, isotropically in the rest frame.
func (g *Generator) twoBody(m, m1, m2 float64, p r3.Vec) (r3.Vec, r3.Vec) {
	q := math.Sqrt(math.Max((m*m-(m1+m2)*(m1+m2))*(m*m-(m1-m2)*(m1-m2)), 0)) / (2 * m)
	cosT := g.rng.Float64()*2 - 1
	phi := g.rng.Float64() * 2 * math.Pi
	sinT := math.Sqrt(1 - cosT*cosT)
	k := r3.Vec{X: q * sinT * math.Cos(phi), Y: q * sinT * math.Sin(phi), Z: q * cosT}
	e1 := math.Sqrt(q*q + m1*m1)
	e2 := math.Sqrt(q*q + m2*m2)
	return boost(k, e1, p, m), boost(r3.Scale(-1, k), e2, p, m)
}

// boost transforms rest-frame momentum k with energy e into the frame in
// which the parent of mass m has momentum p.
func boost(k r3.Vec, e float64, p r3.Vec, m float64) r3.Vec {
	pp := r3.Norm(p)
	if pp == 0 {
		return k
	}
	E := math.Sqrt(pp*pp + m*m)
	gamma := E / m
	n := r3.Scale(1/pp, p)
	beta := pp / E
	kPar := r3.Dot(k, n)
	kPerp := r3.Sub(k, r3.Scale(kPar, n))
	lPar := gamma * (kPar + beta*e)
	return r3.Add(kPerp, r3.Scale(lPar, n))
}
