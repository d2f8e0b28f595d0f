package pipeline

import (
	"context"

	"booking_etl/internal/events"
	"booking_etl/internal/models"
	"booking_etl/internal/validation"
)

// Router delivers each validation result to exactly one destination:
// accepted records to the clean channel, rejections to the quarantine channel.
type Router[T any] struct {
	entity     models.Entity
	clean      chan<- T
	quarantine chan<- models.RejectedRecord
	emitter    events.Emitter
}

func NewRouter[T any](entity models.Entity, clean chan<- T, quarantine chan<- models.RejectedRecord, emitter events.Emitter) *Router[T] {
	return &Router[T]{entity: entity, clean: clean, quarantine: quarantine, emitter: emitter}
}

// Route emits the result's events and sends the record to its destination.
// It only fails when the context is cancelled before the record could be handed over.
func (r *Router[T]) Route(ctx context.Context, res validation.Result[T]) error {
	for _, ev := range res.Events {
		r.emitter.Emit(ev)
	}

	if res.Rejected != nil {
		select {
		case r.quarantine <- *res.Rejected:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.emitter.Emit(models.Event{Kind: models.EventAccepted, Entity: r.entity})
	select {
	case r.clean <- *res.Accepted:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
