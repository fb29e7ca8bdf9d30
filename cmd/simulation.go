package cmd

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/nocsim/nocsim/config"
	"github.com/nocsim/nocsim/mesh"
	"github.com/nocsim/nocsim/powerarea"
	"github.com/nocsim/nocsim/rngutil"
	"github.com/nocsim/nocsim/simclock"
)

type runOptions struct {
	configPath string
	horizon    int64
	seed       int64
	injectRate float64
	tokensPer  int
	vnet       int
}

// runSimulation loads cfg from configPath, builds the mesh, drives
// synthetic traffic across it for opts.horizon cycles, and prints
// per-router activity and power/area estimates. Mirrors the teacher's
// runCmd.Run shape: parse flags/config, construct, run, print, done.
func runSimulation(opts runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	sched := simclock.NewScheduler()
	rng := rngutil.NewPartitionedRNG(rngutil.SimulationKey(opts.seed))

	m, err := mesh.NewMesh(mesh.Config{
		NumRows:          cfg.NumRows,
		NumCols:          cfg.NumCols,
		NumVnets:         cfg.VirtNets,
		VCPerVnet:        cfg.VCsPerVnet,
		BuffersPerCtrlVC: cfg.BuffersPerCtrlVC,
		BuffersPerDataVC: cfg.BuffersPerDataVC,
		RoutingAlgorithm: cfg.RoutingAlgorithm,
		LinkLatency:      simclock.Cycles(cfg.LinkLatency),
		PipelineMode:     cfg.PipelineMode(),
		OrderedVnets:     cfg.OrderedVnetSet(),
	}, sched, rng)
	if err != nil {
		return err
	}

	logrus.Infof("nocsim: built %dx%d mesh (%d routers), running for %d cycles",
		cfg.NumRows, cfg.NumCols, m.NumRouters(), opts.horizon)

	tg := &trafficGenerator{
		mesh:    m,
		rng:     rng.ForSubsystem("traffic"),
		rate:    opts.injectRate,
		tokens:  opts.tokensPer,
		vnet:    opts.vnet,
		horizon: simclock.Cycles(opts.horizon),
	}
	sched.At(0, trafficPriority, tg)

	sched.Run(simclock.Cycles(opts.horizon))

	return printReport(m, cfg, opts.horizon)
}

// trafficPriority runs the traffic generator before any router's own
// per-cycle wakeups in the same cycle. Injected flits still reach the
// router only after the injection link's latency.
const trafficPriority = -1

// trafficGenerator injects synthetic packets from every network
// interface with independent per-cycle probability, rescheduling itself
// one cycle at a time until the configured horizon — the teacher has no
// direct analogue for this; it follows the general self-rescheduling
// Consumer pattern the Router/InputUnit/OutputUnit wakeups already use.
type trafficGenerator struct {
	mesh    *mesh.Mesh
	rng     *rand.Rand
	rate    float64
	tokens  int
	vnet    int
	horizon simclock.Cycles
}

func (tg *trafficGenerator) Wakeup(now simclock.Cycles) {
	n := tg.mesh.NumRouters()
	for id := 0; id < n; id++ {
		if tg.rng.Float64() >= tg.rate {
			continue
		}
		dest := tg.rng.Intn(n)
		if dest == id {
			continue
		}
		ni := tg.mesh.NetworkInterface(id)
		err := ni.Inject(now, mesh.Message{
			DestRouter: dest,
			DestNI:     dest,
			Tokens:     tg.tokens,
			Vnet:       tg.vnet,
		})
		if err != nil {
			logrus.Debugf("nocsim: cycle %d: interface %d skipped injection: %v", now, id, err)
		}
	}

	if now < tg.horizon {
		tg.mesh.Scheduler().At(now+1, trafficPriority, tg)
	}
}

func printReport(m *mesh.Mesh, cfg *config.Config, horizon int64) error {
	fmt.Println("=== Router Activity ===")
	delivered := 0
	for id := 0; id < m.NumRouters(); id++ {
		r := m.Router(id)
		if err := r.Err(); err != nil {
			return fmt.Errorf("nocsim: router %d reported a fatal error: %w", id, err)
		}
		stats := r.Stats()
		fmt.Printf("router %d: writes=%d reads=%d in_arbs=%d out_arbs=%d crossbar=%d\n",
			id, stats.BufferWrites, stats.BufferReads, stats.SwInportArbs, stats.SwOutportArbs, stats.CrossbarTraversals)

		report, err := powerarea.Estimate(powerarea.RouterParams{
			FrequencyHz:      1e9,
			FlitWidthBits:    128,
			NumInPorts:       r.NumInports(),
			NumOutPorts:      r.NumOutports(),
			NumVnets:         cfg.VirtNets,
			VCsPerVnet:       cfg.VCsPerVnet,
			BuffersPerCtrlVC: cfg.BuffersPerCtrlVC,
			BuffersPerDataVC: cfg.BuffersPerDataVC,
		}, powerarea.RouterActivity{
			Cycles:             horizon,
			BufferWrites:       stats.BufferWrites,
			BufferReads:        stats.BufferReads,
			SwInportArbs:       stats.SwInportArbs,
			SwOutportArbs:      stats.SwOutportArbs,
			CrossbarTraversals: stats.CrossbarTraversals,
		})
		if err != nil {
			return fmt.Errorf("nocsim: power/area estimate for router %d: %w", id, err)
		}
		fmt.Printf("  area=%.4f mm^2 power=%.4f mW\n", report.AreaMM2, report.PowerMW)
	}

	for id := 0; id < m.NumRouters(); id++ {
		delivered += len(m.NetworkInterface(id).Delivered())
	}
	fmt.Println("=== Delivery Summary ===")
	fmt.Printf("messages delivered: %d\n", delivered)
	return nil
}
