package notifications

import (
	"context"
	"time"
)

type EventType string

const (
	EventPlayerAdded         EventType = "PlayerAdded"
	EventPlayerRemoved       EventType = "PlayerRemoved"
	EventTournamentStarted   EventType = "TournamentStarted"
	EventNewRound            EventType = "NewRound"
	EventTournamentUpdated   EventType = "TournamentUpdated"
	EventWinnerSelected      EventType = "WinnerSelected"
	EventTournamentCompleted EventType = "TournamentCompleted"
	EventTournamentDeleted   EventType = "TournamentDeleted"
)

// Event is a lifecycle notification for one tournament, emitted after the change is committed.
type Event struct {
	Type         EventType `json:"type"`
	TournamentID int       `json:"tournament_id"`
	Payload      any       `json:"payload,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewEvent(t EventType, tournamentID int, payload any) Event {
	return Event{Type: t, TournamentID: tournamentID, Payload: payload, OccurredAt: time.Now().UTC()}
}

// Sink receives lifecycle events. Delivery is best effort: sinks log their own failures.
type Sink interface {
	Publish(ctx context.Context, e Event)
}

// FanOut forwards every event to each sink in order.
type FanOut []Sink

func (f FanOut) Publish(ctx context.Context, e Event) {
	for _, s := range f {
		if s != nil {
			s.Publish(ctx, e)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
