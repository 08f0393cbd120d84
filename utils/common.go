package utils

const (
	NODETOL = 1.e-12
	// DefaultTolerance is the eigenpair residual tolerance used when none is configured
	DefaultTolerance = 1.e-8
)
