package finder

import (
	"fmt"

	"github.com/banshee-data/simplefinder/internal/config"
	"github.com/banshee-data/simplefinder/internal/kf"
)

// Channel loads the named decay and its cuts from cfg.
func Channel(cfg *config.FinderConfig, name string) (Decay, CutSet, error) {
	dc, err := cfg.Decay(name)
	if err != nil {
		return Decay{}, CutSet{}, err
	}
	d, err := DecayFromConfig(dc)
	if err != nil {
		return Decay{}, CutSet{}, err
	}
	cc, err := cfg.CutsFor(name)
	if err != nil {
		return Decay{}, CutSet{}, fmt.Errorf("%w: %v", ErrNoCuts, err)
	}
	return d, CutSetFromConfig(cc), nil
}

// OptionsFromConfig returns the field and duplicate options of cfg.
func OptionsFromConfig(cfg *config.FinderConfig) ([]Option, error) {
	policy, err := ParseDuplicatePolicy(cfg.GetDuplicates())
	if err != nil {
		return nil, err
	}
	var field kf.Field = kf.StraightLine{}
	if bz := cfg.GetFieldBz(); bz != 0 {
		field = kf.UniformField{Bz: bz}
	}
	return []Option{WithField(field), WithDuplicatePolicy(policy)}, nil
}

// DefaultChannel is Channel on the shipped defaults. It panics if the
// defaults cannot be found; intended for tests and tools run inside the
// repository.
func DefaultChannel(name string) (Decay, CutSet, error) {
	return Channel(config.MustLoadDefaultConfig(), name)
}
