package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/soundprediction/graphfuse/pkg/types"
)

// Neo4jDriver implements GraphStore for Neo4j databases.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver creates a new Neo4j driver instance.
func NewNeo4jDriver(uri, username, password, database string) (*Neo4jDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jDriver{
		client:   driver,
		database: database,
	}, nil
}

func (n *Neo4jDriver) session(ctx context.Context) neo4j.SessionWithContext {
	return n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
}

// EnsureUniqueConstraint creates the uniqueness constraint of spec. An
// already existing or equivalent constraint is not an error.
func (n *Neo4jDriver) EnsureUniqueConstraint(ctx context.Context, spec NodeSpec) error {
	query, err := UniqueConstraintQuery(spec)
	if err != nil {
		return err
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	res, err := session.Run(ctx, query, nil)
	if err == nil {
		_, err = res.Consume(ctx)
	}
	if err != nil {
		if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "An equivalent") {
			return nil
		}
		return fmt.Errorf("failed to create constraint %s: %w", ConstraintName(spec), err)
	}
	return nil
}

// UpsertNodes merges rows as spec.Label nodes in one write transaction.
func (n *Neo4jDriver) UpsertNodes(ctx context.Context, spec NodeSpec, rows []NodeRow) (WriteSummary, error) {
	if len(rows) == 0 {
		return WriteSummary{}, nil
	}
	query, err := UpsertNodesQuery(spec)
	if err != nil {
		return WriteSummary{}, err
	}

	params := make([]map[string]any, len(rows))
	for i, row := range rows {
		params[i] = map[string]any(row)
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"rows": params})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		counters := summary.Counters()
		return WriteSummary{
			NodesCreated:  counters.NodesCreated(),
			PropertiesSet: counters.PropertiesSet(),
		}, nil
	})
	if err != nil {
		return WriteSummary{}, fmt.Errorf("failed to upsert %s nodes: %w", spec.Label, err)
	}
	return result.(WriteSummary), nil
}

// MergeRelations merges relType edges for rows in one write transaction.
func (n *Neo4jDriver) MergeRelations(ctx context.Context, relType types.RelationType, rows []RelationRow, resolution []NodeSpec) (WriteSummary, error) {
	if len(rows) == 0 {
		return WriteSummary{}, nil
	}
	query, err := MergeRelationsQuery(relType, resolution)
	if err != nil {
		return WriteSummary{}, err
	}

	params := make([]map[string]any, len(rows))
	for i, row := range rows {
		params[i] = map[string]any{"subject": row.Subject, "object": row.Object}
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"rows": params})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}

		mergedValue, _ := record.Get("merged")
		merged, err := MustInt64(mergedValue, "merged")
		if err != nil {
			return nil, err
		}
		return WriteSummary{
			RelationshipsCreated: summary.Counters().RelationshipsCreated(),
			Merged:               int(merged),
			Unresolved:           len(rows) - int(merged),
		}, nil
	})
	if err != nil {
		return WriteSummary{}, fmt.Errorf("failed to merge %s relations: %w", relType, err)
	}
	return result.(WriteSummary), nil
}

// Stats counts nodes per label and edges per type.
func (n *Neo4jDriver) Stats(ctx context.Context) (*GraphStats, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		nodeRes, err := tx.Run(ctx, nodeStatsQuery, nil)
		if err != nil {
			return nil, err
		}
		nodeRecords, err := nodeRes.Collect(ctx)
		if err != nil {
			return nil, err
		}

		totalRes, err := tx.Run(ctx, totalNodesQuery, nil)
		if err != nil {
			return nil, err
		}
		totalRecord, err := totalRes.Single(ctx)
		if err != nil {
			return nil, err
		}

		edgeRes, err := tx.Run(ctx, edgeStatsQuery, nil)
		if err != nil {
			return nil, err
		}
		edgeRecords, err := edgeRes.Collect(ctx)
		if err != nil {
			return nil, err
		}

		stats := &GraphStats{
			NodesByLabel: make(map[string]int64),
			EdgesByType:  make(map[string]int64),
			CollectedAt:  time.Now(),
		}

		if total, found := totalRecord.Get("total_nodes"); found {
			stats.NodeCount, _ = AsInt64(total)
		}
		for _, record := range nodeRecords {
			label, _ := record.Get("label")
			count, _ := record.Get("node_count")
			if name, ok := AsString(label); ok {
				stats.NodesByLabel[name], _ = AsInt64(count)
			}
		}
		for _, record := range edgeRecords {
			edgeType, _ := record.Get("edge_type")
			countValue, _ := record.Get("edge_count")
			count, _ := AsInt64(countValue)
			stats.EdgeCount += count
			if name, ok := AsString(edgeType); ok {
				stats.EdgesByType[name] = count
			}
		}
		return stats, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect graph stats: %w", err)
	}
	return result.(*GraphStats), nil
}

// Provider returns the provider type.
func (n *Neo4jDriver) Provider() GraphProvider {
	return GraphProviderNeo4j
}

// Close closes the Neo4j driver.
func (n *Neo4jDriver) Close() error {
	return n.client.Close(context.Background())
}

// VerifyConnectivity checks if the driver can connect to the database.
func (n *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return n.client.VerifyConnectivity(ctx)
}
