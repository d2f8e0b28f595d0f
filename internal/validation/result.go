package validation

import (
	"fmt"

	"booking_etl/internal/models"
	"booking_etl/internal/parser"
)

// Result is the tagged outcome of validating one draft: exactly one of Accepted
// and Rejected is set. Events carries the rejection and any nulled-field warnings.
type Result[T any] struct {
	Accepted *T
	Rejected *models.RejectedRecord
	Events   []models.Event
}

// IsAccepted reports whether the draft was accepted
func (r Result[T]) IsAccepted() bool {
	return r.Accepted != nil
}

// Malformed builds the result for a unit that failed structural decoding
func Malformed[T any](failure *parser.Failure) Result[T] {
	rejected := failure.Rejected()
	return Result[T]{
		Rejected: &rejected,
		Events:   []models.Event{rejectionEvent(rejected)},
	}
}

// checker accumulates nulled-field warnings and the first rejection for one draft
type checker struct {
	entity   models.Entity
	raw      string
	events   []models.Event
	rejected *models.RejectedRecord
}

func newChecker(entity models.Entity, raw string) *checker {
	return &checker{entity: entity, raw: raw}
}

// reject records the rejection; only the first one counts since rules are ordered
func (c *checker) reject(reason models.ReasonCode, fieldName, format string, args ...any) {
	if c.rejected != nil {
		return
	}
	c.rejected = &models.RejectedRecord{
		Entity:  c.entity,
		Raw:     c.raw,
		Reason:  reason,
		Field:   fieldName,
		Message: fmt.Sprintf(format, args...),
	}
}

// null records a warning for a recoverable field that was replaced with null
func (c *checker) null(reason models.ReasonCode, fieldName, format string, args ...any) {
	c.events = append(c.events, models.Event{
		Kind:    models.EventNulled,
		Entity:  c.entity,
		Reason:  string(reason),
		Field:   fieldName,
		Message: fmt.Sprintf(format, args...),
		Raw:     c.raw,
	})
}

func finish[T any](c *checker, accepted T) Result[T] {
	if c.rejected != nil {
		// Warnings gathered before the rejection are dropped: nothing was nulled in storage.
		return Result[T]{
			Rejected: c.rejected,
			Events:   []models.Event{rejectionEvent(*c.rejected)},
		}
	}
	return Result[T]{Accepted: &accepted, Events: c.events}
}

func rejectionEvent(r models.RejectedRecord) models.Event {
	return models.Event{
		Kind:    models.EventRejected,
		Entity:  r.Entity,
		Reason:  string(r.Reason),
		Field:   r.Field,
		Message: r.Message,
		Raw:     r.Raw,
	}
}
