package types

// CrossDirection is the outcome of comparing a fast/slow indicator pair on
// two consecutive bars.
type CrossDirection string

const (
	// CrossUp means the fast value passed from at-or-below to above the slow value.
	CrossUp CrossDirection = "up"
	// CrossDown means the fast value passed from at-or-above to below the slow value.
	CrossDown CrossDirection = "down"
	// CrossNone means no crossover, including while either indicator is warming up.
	CrossNone CrossDirection = "none"
)
