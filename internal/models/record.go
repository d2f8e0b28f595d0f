package models

// Entity names the kind of record flowing through the pipeline
type Entity string

const (
	EntityBooking Entity = "booking"
	EntityAirport Entity = "airport"
)

// ReasonCode is the closed set of reasons a record can be rejected or a field nulled
type ReasonCode string

const (
	ReasonMalformedInput     ReasonCode = "MALFORMED_INPUT"
	ReasonMissingField       ReasonCode = "MISSING_FIELD"
	ReasonInvalidType        ReasonCode = "INVALID_TYPE"
	ReasonMalformedTimestamp ReasonCode = "MALFORMED_TIMESTAMP"
	ReasonUnknownStatus      ReasonCode = "UNKNOWN_STATUS"
	ReasonInvalidCode        ReasonCode = "INVALID_CODE"
	ReasonOutOfRange         ReasonCode = "OUT_OF_RANGE"
	ReasonUnknownValue       ReasonCode = "UNKNOWN_VALUE"
)

// RejectedRecord is written once to the quarantine destination
type RejectedRecord struct {
	Entity  Entity     `json:"entity"`
	Raw     string     `json:"raw"`
	Reason  ReasonCode `json:"reason"`
	Field   string     `json:"field,omitempty"` // empty for structural failures
	Message string     `json:"message"`
}

// ExclusionCause explains why an accepted booking was left out of temporal aggregation
type ExclusionCause string

const (
	ExclusionUnknownDestination ExclusionCause = "UNKNOWN_DESTINATION"
	ExclusionMissingTimezone    ExclusionCause = "MISSING_TIMEZONE"
)

// EventKind classifies pipeline events
type EventKind string

const (
	EventAccepted EventKind = "accepted"
	EventRejected EventKind = "rejected"
	EventNulled   EventKind = "nulled"
	EventExcluded EventKind = "excluded"
)

// Event is emitted by the validator and the joiner instead of writing to a global logger.
// Reason holds a ReasonCode for rejections and nulled fields, an ExclusionCause for exclusions.
type Event struct {
	Kind    EventKind
	Entity  Entity
	Reason  string
	Field   string
	Message string
	Raw     string
}
