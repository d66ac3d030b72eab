package optimizer

import "github.com/standardbeagle/bfind/internal/types"

// Cost tiers, as literal scalars rather than time units.
const (
	costFast    = 40.0
	costFnmatch = 400.0
	costStat    = 1000.0
	costPrint   = 20000.0
	costEmpty   = 2 * costStat
)

// typeBaseRate is the fixed empirical per-type probability table: the
// odds that a randomly encountered file is of a given
// type, used to seed a `-type`/`-xtype` node's baseline probability
// before any path-specific evidence narrows it.
var typeBaseRate = map[uint32]float64{
	uint32(types.Regular.Mask()):  0.82,
	uint32(types.Dir.Mask()):      0.15,
	uint32(types.Symlink.Mask()):  0.02,
	uint32(types.Socket.Mask()):   0.0005,
	uint32(types.Door.Mask()):     0.0005,
	uint32(types.CharDev.Mask()):  0.0002,
	uint32(types.BlockDev.Mask()): 0.0001,
	uint32(types.FIFO.Mask()):     0.0001,
}

// typeMaskBaseProbability sums the base rate of every type variant set
// in mask.
func typeMaskBaseProbability(mask uint32) float64 {
	var p float64
	for bit, rate := range typeBaseRate {
		if mask&bit != 0 {
			p += rate
		}
	}
	if p > 1 {
		p = 1
	}
	return p
}
