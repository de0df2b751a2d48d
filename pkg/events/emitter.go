// Package events publishes candidate and merge lifecycle events.
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const EventContactMerged = "contact.merged"

type Publisher interface {
	Publish(ctx context.Context, event *kafka.DedupeEvent) error
}

type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

func (e *Emitter) EmitCandidateEvent(ctx context.Context, eventType string, candidate *models.DedupeCandidate) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCandidateEvent")
	defer span.End()

	event := &kafka.DedupeEvent{
		EventType:   eventType,
		CandidateID: candidate.ID,
		ContactID1:  candidate.ContactID1,
		ContactID2:  candidate.ContactID2,
		Score:       candidate.Score,
		Status:      candidate.Status,
		Reason:      candidate.Reason,
	}
	if candidate.ResolvedBy != nil {
		event.Actor = *candidate.ResolvedBy
	}

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}
	return nil
}

func (e *Emitter) EmitMergeEvent(ctx context.Context, merge *models.DedupeMerge) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMergeEvent")
	defer span.End()

	event := &kafka.DedupeEvent{
		EventType:  EventContactMerged,
		MergeID:    merge.ID,
		ContactID1: merge.ContactID1,
		ContactID2: merge.ContactID2,
		SurvivorID: merge.SurvivorID,
		Timestamp:  merge.CreatedAt,
	}
	if merge.CandidateID != nil {
		event.CandidateID = *merge.CandidateID
	}
	if merge.PerformedBy != nil {
		event.Actor = *merge.PerformedBy
	}

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit contact.merged event")
		return err
	}
	return nil
}
