// Package config loads the YAML options table a mesh/router simulation
// run is configured from, matching the teacher's strict-field-checking
// yaml.v3 idiom (cmd/default_config.go, cmd/workload_config.go).
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nocsim/nocsim/router"
)

// Config is the full set of options a run needs: topology shape, vnet/VC
// layout, buffer depths, routing algorithm selection, and link latency.
type Config struct {
	NumRows int `yaml:"num_rows"`
	NumCols int `yaml:"num_cols"`

	VirtNets         int `yaml:"virt_nets"`
	VCsPerVnet       int `yaml:"vcs_per_vnet"`
	BuffersPerCtrlVC int `yaml:"buffers_per_ctrl_vc"`
	BuffersPerDataVC int `yaml:"buffers_per_data_vc"`

	RoutingAlgorithm string `yaml:"routing_algorithm"`
	LinkLatency      int    `yaml:"link_latency"`

	// OrderedVnets names the vnets (by index) that must preserve
	// per-outport FIFO order.
	OrderedVnets []int `yaml:"ordered_vnets"`

	// Pipeline selects "one_cycle" (default) or "staged" switch
	// traversal timing; empty means one_cycle.
	Pipeline string `yaml:"pipeline"`
}

var validAlgorithms = map[string]bool{
	"TABLE":      true,
	"XY":         true,
	"RANDOM":     true,
	"TURN_MODEL": true,
	"CUSTOM":     true,
}

// Load reads and strictly parses the YAML file at path, rejecting unknown
// fields (typos must cause errors, matching cmd/default_config.go's
// decoder.KnownFields(true) use), then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logrus.Infof("config: loaded %s (%dx%d mesh, %d vnets, %d vcs/vnet, routing=%s)",
		path, cfg.NumRows, cfg.NumCols, cfg.VirtNets, cfg.VCsPerVnet, cfg.RoutingAlgorithm)
	return &cfg, nil
}

// Validate checks that the mesh shape, vnet/VC counts, buffer depths, and
// link latency are positive, that routing_algorithm and pipeline are
// known values, and that every ordered vnet is in range. Unknown options
// are rejected earlier, by Load's strict decoding. The router count is
// always num_rows*num_cols, so there is no separate count to check.
func (c *Config) Validate() error {
	if c.NumRows <= 0 || c.NumCols <= 0 {
		return fmt.Errorf("config: num_rows and num_cols must be positive, got %d and %d", c.NumRows, c.NumCols)
	}
	if c.VirtNets <= 0 {
		return fmt.Errorf("config: virt_nets must be positive, got %d", c.VirtNets)
	}
	if c.VCsPerVnet <= 0 {
		return fmt.Errorf("config: vcs_per_vnet must be positive, got %d", c.VCsPerVnet)
	}
	if c.BuffersPerCtrlVC <= 0 || c.BuffersPerDataVC <= 0 {
		return fmt.Errorf("config: buffers_per_ctrl_vc and buffers_per_data_vc must be positive")
	}
	if c.LinkLatency <= 0 {
		return fmt.Errorf("config: link_latency must be positive, got %d", c.LinkLatency)
	}
	if !validAlgorithms[c.RoutingAlgorithm] {
		return fmt.Errorf("config: unknown routing_algorithm %q", c.RoutingAlgorithm)
	}
	for _, v := range c.OrderedVnets {
		if v < 0 || v >= c.VirtNets {
			return fmt.Errorf("config: ordered_vnets entry %d out of range [0,%d)", v, c.VirtNets)
		}
	}
	switch c.Pipeline {
	case "", "one_cycle", "staged":
	default:
		return fmt.Errorf("config: unknown pipeline %q", c.Pipeline)
	}
	return nil
}

// PipelineMode translates the Pipeline string option into the router
// package's PipelineMode enum.
func (c *Config) PipelineMode() router.PipelineMode {
	if c.Pipeline == "staged" {
		return router.Staged
	}
	return router.OneCycle
}

// OrderedVnetSet builds the set router.NewRouter expects from the
// configured OrderedVnets slice.
func (c *Config) OrderedVnetSet() map[int]bool {
	set := make(map[int]bool, len(c.OrderedVnets))
	for _, v := range c.OrderedVnets {
		set[v] = true
	}
	return set
}
