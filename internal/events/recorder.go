package events

import (
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"booking_etl/internal/metrics"
	"booking_etl/internal/models"
)

// Emitter receives validation and join events
type Emitter interface {
	Emit(ev models.Event)
}

// maxRawLogLength truncates raw input in log entries
const maxRawLogLength = 512

// Recorder logs every event once, updates the metrics and keeps per-entity counts.
// It is safe for concurrent use by the pipeline workers.
type Recorder struct {
	metrics *metrics.Metrics

	mu       sync.Mutex
	counters map[models.Entity]*EntitySummary
}

// NewRecorder creates a recorder; m may be nil
func NewRecorder(m *metrics.Metrics) *Recorder {
	return &Recorder{
		metrics:  m,
		counters: make(map[models.Entity]*EntitySummary),
	}
}

// Emit logs and counts one event
func (r *Recorder) Emit(ev models.Event) {
	switch ev.Kind {
	case models.EventAccepted:
		slog.Debug("Record accepted", "entity", ev.Entity)
		r.metrics.IncrementProcessed(string(ev.Entity), "accepted")
	case models.EventRejected:
		slog.Error("Record rejected",
			"entity", ev.Entity,
			"reason", ev.Reason,
			"field", ev.Field,
			"message", ev.Message,
			"raw", truncate(ev.Raw),
		)
		r.metrics.IncrementProcessed(string(ev.Entity), "rejected")
		r.metrics.IncrementRejection(string(ev.Entity), ev.Reason)
	case models.EventNulled:
		slog.Warn("Field nulled",
			"entity", ev.Entity,
			"field", ev.Field,
			"reason", ev.Reason,
			"message", ev.Message,
		)
		r.metrics.IncrementNulled(string(ev.Entity), ev.Field)
	case models.EventExcluded:
		slog.Debug("Booking excluded from aggregation", "cause", ev.Reason, "message", ev.Message)
		r.metrics.IncrementExclusion(ev.Reason)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.counters[ev.Entity]
	if !ok {
		s = newEntitySummary()
		r.counters[ev.Entity] = s
	}
	s.add(ev)
}

// Summary returns a copy of the counts gathered so far
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Summary{Entities: make(map[models.Entity]EntitySummary, len(r.counters))}
	for entity, s := range r.counters {
		out.Entities[entity] = s.clone()
	}
	return out
}

// Summary holds the run counts per entity
type Summary struct {
	Entities map[models.Entity]EntitySummary
}

// Entity returns the counts of one entity, zero if no event was seen
func (s Summary) Entity(e models.Entity) EntitySummary {
	if es, ok := s.Entities[e]; ok {
		return es
	}
	return *newEntitySummary()
}

// EntitySummary counts the outcomes of one entity
type EntitySummary struct {
	Accepted int
	Rejected map[string]int // by reason code
	Nulled   map[string]int // by field
	Excluded map[string]int // by exclusion cause
}

func newEntitySummary() *EntitySummary {
	return &EntitySummary{
		Rejected: make(map[string]int),
		Nulled:   make(map[string]int),
		Excluded: make(map[string]int),
	}
}

func (s *EntitySummary) add(ev models.Event) {
	switch ev.Kind {
	case models.EventAccepted:
		s.Accepted++
	case models.EventRejected:
		s.Rejected[ev.Reason]++
	case models.EventNulled:
		s.Nulled[ev.Field]++
	case models.EventExcluded:
		s.Excluded[ev.Reason]++
	}
}

func (s *EntitySummary) clone() EntitySummary {
	c := newEntitySummary()
	c.Accepted = s.Accepted
	for k, v := range s.Rejected {
		c.Rejected[k] = v
	}
	for k, v := range s.Nulled {
		c.Nulled[k] = v
	}
	for k, v := range s.Excluded {
		c.Excluded[k] = v
	}
	return *c
}

// TotalRejected returns the number of rejected records
func (s EntitySummary) TotalRejected() int {
	return sum(s.Rejected)
}

// TotalExcluded returns the number of excluded bookings
func (s EntitySummary) TotalExcluded() int {
	return sum(s.Excluded)
}

// Log writes the summary of one entity as a single info entry
func (s EntitySummary) Log(entity models.Entity) {
	slog.Info("Run summary",
		"entity", entity,
		"accepted", s.Accepted,
		"rejected", s.TotalRejected(),
		"rejected_by_reason", sortedCounts(s.Rejected),
		"nulled_by_field", sortedCounts(s.Nulled),
		"excluded_by_cause", sortedCounts(s.Excluded),
	)
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// sortedCounts renders a count map as a stable slice of "key=count" strings
func sortedCounts(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+strconv.Itoa(m[k]))
	}
	return out
}

func truncate(s string) string {
	if len(s) <= maxRawLogLength {
		return s
	}
	return s[:maxRawLogLength] + "..."
}
