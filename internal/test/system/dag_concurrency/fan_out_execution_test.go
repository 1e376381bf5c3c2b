package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vk/signalgridgo/internal/testutil"
)

// Test for: Stages in the same layer run concurrently, not sequentially.
func TestDagConcurrency_FanOutExecution(t *testing.T) {
	// --- Arrange ---
	hcl := `
		stage "root" { kind = "internal" }
		stage "left" {
			kind       = "internal"
			depends_on = ["root"]
		}
		stage "right" {
			kind       = "internal"
			depends_on = ["root"]
		}
	`
	sleep := 150 * time.Millisecond
	sleeper := testutil.NewMockSleeperModule([]string{"root", "left", "right"}, nil, sleep)

	// --- Act ---
	start := time.Now()
	h := testutil.RunPipelineTest(t, map[string]string{"main.hcl": hcl}, sleeper)
	elapsed := time.Since(start)
	require.NoError(t, h.Err)

	// --- Assert ---
	// Sequential execution would need at least 3 sleeps; the fan-out layer
	// must overlap, keeping the run under that bound.
	require.Less(t, elapsed, 3*sleep, "left and right should have run concurrently")

	left := sleeper.Record("left")
	right := sleeper.Record("right")
	require.True(t, left.Start.Before(right.End) && right.Start.Before(left.End),
		"execution windows of left and right should overlap")
}
