package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vk/signalgridgo/internal/testutil"
)

// Test for: Fan-in synchronization waits for all parallel stages.
func TestDagConcurrency_FanInSynchronization(t *testing.T) {
	// --- Arrange ---
	hcl := `
		stage "A" { kind = "internal" }
		stage "B" { kind = "internal" }
		stage "C" { kind = "internal" }
		stage "D" {
			kind       = "internal"
			depends_on = ["A", "B", "C"]
		}
	`
	sleeper := testutil.NewMockSleeperModule([]string{"A", "B", "C", "D"}, nil, 100*time.Millisecond)

	// --- Act ---
	h := testutil.RunPipelineTest(t, map[string]string{"main.hcl": hcl}, sleeper)
	require.NoError(t, h.Err)

	// --- Assert ---
	latestPrereqEnd := sleeper.Record("A").End
	for _, id := range []string{"B", "C"} {
		if end := sleeper.Record(id).End; end.After(latestPrereqEnd) {
			latestPrereqEnd = end
		}
	}

	if sleeper.Record("D").Start.Before(latestPrereqEnd) {
		t.Errorf("fan-in synchronization failed: stage D started before all prerequisites were complete")
	}
}
