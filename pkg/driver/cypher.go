package driver

import (
	"fmt"
	"strings"

	"github.com/soundprediction/graphfuse/pkg/types"
)

// ConstraintName returns the name of the uniqueness constraint of spec.
func ConstraintName(spec NodeSpec) string {
	return strings.ToLower(spec.Label) + "_" + spec.Key + "_unique"
}

// UniqueConstraintQuery builds the idempotent constraint declaration for spec.
func UniqueConstraintQuery(spec NodeSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:`%s`) REQUIRE n.`%s` IS UNIQUE",
		ConstraintName(spec), spec.Label, spec.Key), nil
}

// UpsertNodesQuery builds the batched node upsert for spec. It expects a
// $rows parameter holding one property map per node.
func UpsertNodesQuery(spec NodeSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("UNWIND $rows AS row\nMERGE (n:`%s` {`%s`: row.`%s`})\nSET n = row",
		spec.Label, spec.Key, spec.Key), nil
}

// MergeRelationsQuery builds the batched edge merge for relType. Endpoints
// are resolved against every spec in resolution, earlier specs taking
// precedence. It expects a $rows parameter of {subject, object} maps and
// returns the number of merged rows as "merged".
func MergeRelationsQuery(relType types.RelationType, resolution []NodeSpec) (string, error) {
	if err := validateRelationWrite(relType, resolution); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("UNWIND $rows AS row\n")
	writeResolution(&b, "s", "row.subject", resolution, "row")
	writeResolution(&b, "o", "row.object", resolution, "row, s")
	b.WriteString("WITH s, o WHERE s IS NOT NULL AND o IS NOT NULL\n")
	fmt.Fprintf(&b, "MERGE (s)-[r:`%s`]->(o)\n", relType)
	b.WriteString("RETURN count(r) AS merged")
	return b.String(), nil
}

func writeResolution(b *strings.Builder, alias, value string, resolution []NodeSpec, carry string) {
	candidates := make([]string, len(resolution))
	for i, spec := range resolution {
		candidates[i] = fmt.Sprintf("%s%d", alias, i)
		fmt.Fprintf(b, "OPTIONAL MATCH (%s:`%s` {`%s`: %s})\n", candidates[i], spec.Label, spec.Key, value)
	}
	fmt.Fprintf(b, "WITH %s, coalesce(%s) AS %s\n", carry, strings.Join(candidates, ", "), alias)
}

const (
	nodeStatsQuery = `MATCH (n)
UNWIND labels(n) AS label
RETURN label, count(n) AS node_count
ORDER BY label`

	totalNodesQuery = `MATCH (n) RETURN count(n) AS total_nodes`

	edgeStatsQuery = `MATCH ()-[r]->()
RETURN type(r) AS edge_type, count(r) AS edge_count
ORDER BY edge_type`
)
