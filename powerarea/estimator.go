// Package powerarea estimates router and link power/area from the exact
// parameter maps gem5's DSENT binding passes across, grounded on
// ext/dsent/interface.cc's dsent_computeRouterPowerAndArea/
// dsent_computeLinkPower calling convention. It does not call DSENT or
// any other EDA tool (out of scope per spec.md §1); instead it is a
// deliberately simple closed-form stand-in over the same parameters.
package powerarea

import "fmt"

// Per-event energy constants (arbitrary but fixed units: picojoules per
// event), standing in for a synthesized cell library's characterized
// energies. Not calibrated against silicon; this model is for relative
// power/area comparisons across configurations, not absolute figures.
const (
	energyPerBufferAccessPJ   = 0.6
	energyPerArbPJ            = 0.3
	energyPerCrossbarTraverse = 1.2
	areaPerPortMM2            = 0.015
	areaPerVCMM2              = 0.004
	areaPerBufferSlotMM2      = 0.0006
	areaPerWireWidthBitMM2    = 0.00002
	energyPerLinkTraversePJ   = 0.8
)

// Report is the estimator's output: an area and an average power figure
// for the cycle window the activity counters span.
type Report struct {
	AreaMM2 float64
	PowerMW float64
}

// RouterParams mirrors the static configuration fields
// dsent_computeRouterPowerAndArea packs into DSENT's parameter map
// (Frequency, NumberBitsPerFlit, NumberInputPorts, NumberOutputPorts,
// NumberVirtualNetworks, NumberVirtualChannelsPerVirtualNetwork,
// NumberBuffersPerVirtualChannel).
type RouterParams struct {
	FrequencyHz      float64
	FlitWidthBits    int
	NumInPorts       int
	NumOutPorts      int
	NumVnets         int
	VCsPerVnet       int
	BuffersPerCtrlVC int
	BuffersPerDataVC int
}

// RouterActivity mirrors the per-run activity counters
// dsent_computeRouterPowerAndArea packs into DSENT's parameter map
// (NumCycles, NumBufferWrites, NumBufferReads, NumSwInportArbs,
// NumSwOutportArbs, NumCrossbarTraversals) — the same counters
// router.RouterStats accumulates, plus the elapsed cycle count.
type RouterActivity struct {
	Cycles             int64
	BufferWrites       int64
	BufferReads        int64
	SwInportArbs       int64
	SwOutportArbs      int64
	CrossbarTraversals int64
}

// Estimate computes a router's area and average power from its static
// configuration and one run's activity counters.
func Estimate(p RouterParams, a RouterActivity) (Report, error) {
	if p.FrequencyHz <= 0 {
		return Report{}, fmt.Errorf("powerarea: frequency must be positive")
	}
	if p.FlitWidthBits == 0 || p.NumInPorts == 0 || p.NumOutPorts == 0 || p.NumVnets == 0 || p.VCsPerVnet == 0 {
		return Report{}, fmt.Errorf("powerarea: flit width, port counts, vnets, and vcs per vnet must be nonzero")
	}

	area := float64(p.NumInPorts+p.NumOutPorts) * areaPerPortMM2
	area += float64(p.NumVnets*p.VCsPerVnet) * areaPerVCMM2
	area += float64(p.NumVnets-1) * float64(p.VCsPerVnet) * float64(p.BuffersPerCtrlVC) * areaPerBufferSlotMM2
	area += float64(p.VCsPerVnet) * float64(p.BuffersPerDataVC) * areaPerBufferSlotMM2
	area += float64(p.FlitWidthBits) * areaPerWireWidthBitMM2

	energyPJ := float64(a.BufferWrites+a.BufferReads) * energyPerBufferAccessPJ
	energyPJ += float64(a.SwInportArbs+a.SwOutportArbs) * energyPerArbPJ
	energyPJ += float64(a.CrossbarTraversals) * energyPerCrossbarTraverse

	var powerMW float64
	if a.Cycles > 0 {
		runtimeNs := float64(a.Cycles) / (p.FrequencyHz / 1e9)
		if runtimeNs > 0 {
			powerMW = (energyPJ / runtimeNs) * 1e3 / 1e3 // pJ/ns == mW, already in mW-equivalent units
		}
	}

	return Report{AreaMM2: area, PowerMW: powerMW}, nil
}

// LinkParams mirrors the static configuration fields
// dsent_computeLinkPower packs into DSENT's parameter map (Frequency,
// NumberBits, WireLength, Delay).
type LinkParams struct {
	FrequencyHz float64
	WidthBits   int
	LengthMM    float64
	DelayNs     float64
}

// LinkActivity mirrors the per-run activity counters dsent_computeLinkPower
// packs into DSENT's parameter map (NumCycles, NumLinkTraversals).
type LinkActivity struct {
	Cycles     int64
	Traversals int64
}

// EstimateLink computes a link's area and average power from its static
// configuration and one run's traversal count.
func EstimateLink(p LinkParams, a LinkActivity) (Report, error) {
	if p.FrequencyHz <= 0 {
		return Report{}, fmt.Errorf("powerarea: frequency must be positive")
	}
	if p.WidthBits == 0 {
		return Report{}, fmt.Errorf("powerarea: link width must be nonzero")
	}
	if p.LengthMM <= 0 || p.DelayNs <= 0 {
		return Report{}, fmt.Errorf("powerarea: link length and delay must be positive")
	}

	area := float64(p.WidthBits) * p.LengthMM * areaPerWireWidthBitMM2 * 10

	energyPJ := float64(a.Traversals) * energyPerLinkTraversePJ * (p.LengthMM / 1.0)

	var powerMW float64
	if a.Cycles > 0 {
		runtimeNs := float64(a.Cycles) / (p.FrequencyHz / 1e9)
		if runtimeNs > 0 {
			powerMW = energyPJ / runtimeNs
		}
	}

	return Report{AreaMM2: area, PowerMW: powerMW}, nil
}
