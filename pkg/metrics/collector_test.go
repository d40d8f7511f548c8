package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/soundprediction/graphfuse/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("")

	c.RecordOracle("fuse-entities", 4, 1)
	c.RecordOracle("fuse-entities", 2, 0)
	assert.Equal(t, 6.0, testutil.ToFloat64(c.oracleCalls.WithLabelValues("fuse-entities")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fallbacks.WithLabelValues("fuse-entities")))

	c.RecordTriples("fuse-relations", "duplicate", 3)
	c.RecordTriples("fuse-relations", "malformed", 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.triples), "zero counts create no series")

	c.RecordNodes("Concept", "written", 10)
	c.RecordEdges("unresolved", 2)
	assert.Equal(t, 10.0, testutil.ToFloat64(c.nodes.WithLabelValues("Concept", "written")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.edges.WithLabelValues("unresolved")))

	c.ObserveStage("import", time.Second, nil)
	c.ObserveStage("import", time.Second, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageFailures.WithLabelValues("import")))
}

func TestCollector_GraphStats(t *testing.T) {
	c := NewCollector("test")
	c.SetGraphStats(&driver.GraphStats{
		NodesByLabel: map[string]int64{"Concept": 5, "Document": 2},
		EdgesByType:  map[string]int64{"USES": 3},
	})
	c.SetGraphStats(&driver.GraphStats{
		NodesByLabel: map[string]int64{"Concept": 6},
	})
	assert.Equal(t, 1, testutil.CollectAndCount(c.graphNodes), "stale labels are cleared")
	assert.Equal(t, 6.0, testutil.ToFloat64(c.graphNodes.WithLabelValues("Concept")))
	assert.Zero(t, testutil.CollectAndCount(c.graphEdges))

	c.SetGraphStats(nil)
	assert.Equal(t, 1, testutil.CollectAndCount(c.graphNodes))
}

func TestCollector_WriteToTextfile(t *testing.T) {
	c := NewCollector("")
	c.RecordOracle("link-references", 2, 0)

	path := filepath.Join(t.TempDir(), "graphfuse.prom")
	require.NoError(t, c.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `graphfuse_oracle_calls_total{stage="link-references"} 2`))
}
