// README: Change events fanned out to role clients.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kirana/internal/modules/delivery"
	"kirana/internal/modules/presence"
	"kirana/internal/types"
)

type Topic string

const (
	TopicRequests Topic = "delivery_requests"
	TopicDrivers  Topic = "drivers"
)

var ErrBadEvent = errors.New("malformed event")

func ParseTopic(v string) (Topic, bool) {
	switch t := Topic(v); t {
	case TopicRequests, TopicDrivers:
		return t, true
	}
	return "", false
}

// Event is the wire form of a committed change. New is absent for deletes and
// Old is absent for inserts.
type Event struct {
	Topic Topic            `json:"topic"`
	Type  types.ChangeKind `json:"event_type"`
	New   json.RawMessage  `json:"new,omitempty"`
	Old   json.RawMessage  `json:"old,omitempty"`
	At    time.Time        `json:"at"`
}

// Change is a decoded event for one record type.
type Change[T any] struct {
	Type types.ChangeKind
	New  *T
	Old  *T
}

func newEvent[T any](topic Topic, kind types.ChangeKind, newRec, oldRec *T, at time.Time) (Event, error) {
	e := Event{Topic: topic, Type: kind, At: at}
	var err error
	if newRec != nil {
		if e.New, err = json.Marshal(newRec); err != nil {
			return Event{}, err
		}
	}
	if oldRec != nil {
		if e.Old, err = json.Marshal(oldRec); err != nil {
			return Event{}, err
		}
	}
	return e, e.validate()
}

func RequestEvent(kind types.ChangeKind, newRec, oldRec *delivery.Request, at time.Time) (Event, error) {
	return newEvent(TopicRequests, kind, redact(newRec), redact(oldRec), at)
}

func DriverEvent(kind types.ChangeKind, newRec, oldRec *presence.Driver, at time.Time) (Event, error) {
	return newEvent(TopicDrivers, kind, newRec, oldRec, at)
}

func redact(r *delivery.Request) *delivery.Request {
	if r == nil {
		return nil
	}
	cp := r.Clone()
	cp.OTP = ""
	return cp
}

func Encode(e Event) ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Decode parses and validates a wire event.
func Decode(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	return e, e.validate()
}

func (e Event) validate() error {
	if _, ok := ParseTopic(string(e.Topic)); !ok {
		return fmt.Errorf("%w: unknown topic %q", ErrBadEvent, e.Topic)
	}
	switch e.Type {
	case types.ChangeInsert, types.ChangeUpdate:
		if len(e.New) == 0 {
			return fmt.Errorf("%w: %s without new record", ErrBadEvent, e.Type)
		}
	case types.ChangeDelete:
		if len(e.Old) == 0 {
			return fmt.Errorf("%w: delete without old record", ErrBadEvent)
		}
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrBadEvent, e.Type)
	}
	return nil
}

// Requests decodes a delivery_requests event.
func (e Event) Requests() (Change[delivery.Request], error) {
	return decodeChange[delivery.Request](e, TopicRequests)
}

// Drivers decodes a drivers event.
func (e Event) Drivers() (Change[presence.Driver], error) {
	return decodeChange[presence.Driver](e, TopicDrivers)
}

func decodeChange[T any](e Event, want Topic) (Change[T], error) {
	if e.Topic != want {
		return Change[T]{}, fmt.Errorf("%w: topic %s is not %s", ErrBadEvent, e.Topic, want)
	}
	c := Change[T]{Type: e.Type}
	if len(e.New) > 0 {
		c.New = new(T)
		if err := json.Unmarshal(e.New, c.New); err != nil {
			return Change[T]{}, fmt.Errorf("%w: new: %v", ErrBadEvent, err)
		}
	}
	if len(e.Old) > 0 {
		c.Old = new(T)
		if err := json.Unmarshal(e.Old, c.Old); err != nil {
			return Change[T]{}, fmt.Errorf("%w: old: %v", ErrBadEvent, err)
		}
	}
	return c, nil
}
