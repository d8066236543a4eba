package finder

import "errors"

var (
	// ErrNotInitialised is returned by FindParticles before Init.
	ErrNotInitialised = errors.New("finder: no event loaded, call Init first")
	// ErrNoDecay is returned by FindParticles when no Decay was set.
	ErrNoDecay = errors.New("finder: no decay definition set")
	// ErrNoCuts is returned by FindParticles when no CutSet was set.
	ErrNoCuts = errors.New("finder: no cut set configured")
	// ErrInvalidDecay wraps decay definition validation failures.
	ErrInvalidDecay = errors.New("finder: invalid decay definition")
	// ErrUnknownCut is returned when a cut name is not recognised.
	ErrUnknownCut = errors.New("finder: unknown cut")
)
