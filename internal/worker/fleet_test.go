package worker

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/orchestrate/internal/intake"
	"github.com/dusk-indust/orchestrate/internal/output"
)

func testBatch() *output.Batch {
	return &output.Batch{
		RunID:   "run-fleet",
		Outputs: []output.AgentOutput{modelsOutput(), viewsOutput()},
	}
}

// findAvailablePorts asks the OS for n consecutive unused TCP ports,
// retrying from a fresh base when the block is not free.
func findAvailablePorts(t *testing.T, n int) int {
	t.Helper()
	for attempt := 0; attempt < 10; attempt++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		base := ln.Addr().(*net.TCPAddr).Port
		ln.Close()

		free := true
		for i := 1; i < n; i++ {
			probe, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", base+i))
			if err != nil {
				free = false
				break
			}
			probe.Close()
		}
		if free {
			return base
		}
	}
	t.Fatal("no consecutive free ports found")
	return 0
}

func waitForEndpoint(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + intake.WellKnownPath)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("endpoint %s did not come up", url)
}

func TestFleet_StartAllAndCollect(t *testing.T) {
	ctx := context.Background()
	fleet := NewFleet(testBatch())

	basePort := findAvailablePorts(t, 2)
	workers, err := fleet.StartAll(ctx, basePort)
	require.NoError(t, err)
	defer fleet.StopAll(ctx)

	require.Len(t, workers, 2)
	assert.Equal(t, "agent-models", workers[0].AgentID)
	assert.Equal(t, fmt.Sprintf("http://127.0.0.1:%d", basePort), workers[0].Endpoint)
	for _, w := range workers {
		waitForEndpoint(t, w.Endpoint)
	}

	collector := output.NewCollector(intake.NewHTTPClient(), nil)
	batch, err := collector.FromEndpoints(ctx, "run-fleet", workers)
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-models", "agent-views"}, batch.AgentIDs())
}

func TestFleet_StopAllShutsWorkersDown(t *testing.T) {
	ctx := context.Background()
	fleet := NewFleet(testBatch())

	basePort := findAvailablePorts(t, 2)
	workers, err := fleet.StartAll(ctx, basePort)
	require.NoError(t, err)
	for _, w := range workers {
		waitForEndpoint(t, w.Endpoint)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, fleet.StopAll(stopCtx))

	time.Sleep(50 * time.Millisecond)
	_, err = http.Get(workers[0].Endpoint + intake.WellKnownPath)
	assert.Error(t, err, "expected connection error after shutdown")
}
