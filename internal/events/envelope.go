package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the wire form of an event. (Event, Producer, ProducerID,
// Timestamp) identifies a delivery, so consumers can drop replays.
type Envelope struct {
	Event      Kind            `json:"event"`
	Producer   string          `json:"producer"`
	ProducerID string          `json:"producerId"`
	Timestamp  time.Time       `json:"timestamp"`
	Broadcast  bool            `json:"broadcast"`
	Data       json.RawMessage `json:"data"`
}

// Wrap encodes e into an envelope stamped with at.
func Wrap(e Event, at time.Time) (Envelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("events.Wrap %s: %w", e.Kind(), err)
	}
	producer, producerID := e.Producer()
	_, targeted := e.(Targeted)
	return Envelope{
		Event:      e.Kind(),
		Producer:   producer,
		ProducerID: producerID,
		Timestamp:  at,
		Broadcast:  !targeted,
		Data:       data,
	}, nil
}

// Key returns the dedup key of the envelope.
func (env Envelope) Key() string {
	return fmt.Sprintf("%s|%s|%s|%d", env.Event, env.Producer, env.ProducerID, env.Timestamp.UnixNano())
}

// Decode turns the envelope back into its typed event.
func (env Envelope) Decode() (Event, error) {
	var (
		e   Event
		err error
	)
	switch env.Event {
	case KindBetPlaced:
		e, err = decode[BetPlaced](env.Data)
	case KindBetResolved:
		e, err = decode[BetResolved](env.Data)
	case KindBetCanceled:
		e, err = decode[BetCanceled](env.Data)
	case KindUserBetCanceled:
		e, err = decode[UserBetCanceled](env.Data)
	case KindUserReward:
		e, err = decode[UserReward](env.Data)
	case KindUserAward:
		e, err = decode[UserAward](env.Data)
	case KindNewBet:
		e, err = decode[NewBet](env.Data)
	default:
		return nil, fmt.Errorf("events.Decode: unknown event %q", env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("events.Decode %s: %w", env.Event, err)
	}
	return e, nil
}

func decode[T Event](data json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
