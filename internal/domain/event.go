package domain

import (
	"encoding/json"
	"fmt"
)

// EventKind identifies a broadcast event variant.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventJoined  EventKind = "joined"
	EventLeft    EventKind = "left"
	EventSync    EventKind = "sync"
)

// Event is the closed set of payloads carried on the broadcast bus.
//
// Snapshot events (created/updated/joined/left) carry the full ride as it
// was committed. Sync pings carry only a ride id and a re-publish attempt
// counter. Subscribers must treat every event as a hint to re-read the
// authoritative store, never as state to apply directly: the bus delivers
// duplicated, reordered, or dropped messages.
type Event struct {
	Kind    EventKind `json:"kind"`
	Ride    *Ride     `json:"ride,omitempty"`
	RideID  string    `json:"ride_id,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
}

// EncodeEvent serializes an event for the broadcast bus.
func EncodeEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses a broadcast payload, rejecting unknown kinds so that
// downstream handling stays exhaustive over the closed variant set.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	switch e.Kind {
	case EventCreated, EventUpdated, EventJoined, EventLeft, EventSync:
		return e, nil
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

// TargetRide returns the ride id the event refers to, if any.
func (e Event) TargetRide() string {
	if e.Ride != nil {
		return e.Ride.ID
	}
	return e.RideID
}
