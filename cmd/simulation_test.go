package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mesh.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRunSimulation_SmallMeshCompletesWithoutError(t *testing.T) {
	// GIVEN a small 2x2 mesh config
	path := writeTestConfig(t, `
num_rows: 2
num_cols: 2
virt_nets: 1
vcs_per_vnet: 2
buffers_per_ctrl_vc: 4
buffers_per_data_vc: 4
routing_algorithm: XY
link_latency: 1
`)

	// WHEN a short synthetic-traffic run is driven end to end
	err := runSimulation(runOptions{
		configPath: path,
		horizon:    200,
		seed:       1,
		injectRate: 0.2,
		tokensPer:  3,
		vnet:       0,
	})

	// THEN no router reports a fatal error and the run completes
	assert.NoError(t, err)
}

func TestRunSimulation_RejectsMissingConfig(t *testing.T) {
	err := runSimulation(runOptions{configPath: filepath.Join(t.TempDir(), "missing.yaml"), horizon: 10})
	assert.Error(t, err)
}
