package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	ContactLabel    = "Contact"
	MergedIntoRel   = "MERGED_INTO"
	maxSurvivorHops = 16
)

var linkMergedCypher = fmt.Sprintf(`
	MERGE (loser:%[1]s {id: $loser_id})
	MERGE (survivor:%[1]s {id: $survivor_id})
	MERGE (loser)-[r:%[2]s {merge_id: $merge_id}]->(survivor)
	SET r.created_at = $created_at, r.performed_by = $performed_by
`, ContactLabel, MergedIntoRel)

var survivorCypher = fmt.Sprintf(`
	OPTIONAL MATCH (:%[1]s {id: $contact_id})-[:%[2]s*1..%[3]d]->(s:%[1]s)
	WHERE NOT (s)-[:%[2]s]->()
	RETURN s.id AS survivor_id
	LIMIT 1
`, ContactLabel, MergedIntoRel, maxSurvivorHops)

// MergeProjector records merges as (:Contact)-[:MERGED_INTO]->(:Contact)
// edges so merge chains can be followed to the final survivor.
type MergeProjector struct {
	client *Client
	logger ectologger.Logger
}

func NewMergeProjector(client *Client, logger ectologger.Logger) *MergeProjector {
	return &MergeProjector{
		client: client,
		logger: logger,
	}
}

// LinkMerged adds the edge from the losing contact to the survivor. Replaying
// the same merge is a no-op.
func (p *MergeProjector) LinkMerged(ctx context.Context, merge *models.DedupeMerge) error {
	ctx, span := tracing.StartSpan(ctx, "graph.MergeProjector.LinkMerged")
	defer span.End()

	params := linkMergedParams(merge)
	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, linkMergedCypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("merge_id", merge.ID).Error("Failed to link merged contacts in graph")
		return fmt.Errorf("failed to link merged contacts in graph: %w", err)
	}

	return nil
}

// Survivor follows MERGED_INTO edges from contactID and returns the contact
// it was ultimately merged into, or contactID itself.
func (p *MergeProjector) Survivor(ctx context.Context, contactID int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.MergeProjector.Survivor")
	defer span.End()

	res, err := p.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, survivorCypher, map[string]any{"contact_id": contactID})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		id, isNil, err := neo4j.GetRecordValue[int64](record, "survivor_id")
		if err != nil {
			return nil, err
		}
		if isNil {
			return contactID, nil
		}
		return id, nil
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("contact_id", contactID).Error("Failed to resolve merge survivor")
		return 0, fmt.Errorf("failed to resolve merge survivor: %w", err)
	}

	return res.(int64), nil
}

func linkMergedParams(merge *models.DedupeMerge) map[string]any {
	performedBy := ""
	if merge.PerformedBy != nil {
		performedBy = *merge.PerformedBy
	}
	return map[string]any{
		"loser_id":     merge.LoserID(),
		"survivor_id":  merge.SurvivorID,
		"merge_id":     merge.ID,
		"created_at":   merge.CreatedAt.UTC().Format(time.RFC3339Nano),
		"performed_by": performedBy,
	}
}
