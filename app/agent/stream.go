package agent

import (
	"context"
	"errors"

	"askmydocs/types"
)

type EventType string

const (
	EventMetadata EventType = "metadata"
	EventToken    EventType = "token"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one element of a streaming answer. A successful stream is
// exactly one metadata event, zero or more token events, then one
// done event; a failed stream ends with one error event instead.
type Event struct {
	Type     EventType
	Token    string
	Metadata []types.Metadata
	Results  []types.RetrievalResult
	Err      error
}

// QueryStream answers one question as an event stream. The metadata
// event is emitted before any token so the caller can show citations
// up front. Cancelling ctx (the consumer disconnecting) stops the
// upstream model call; the channel is closed after the terminal event.
func (g *Generator) QueryStream(ctx context.Context, question string, turns []types.ConversationTurn, k int) <-chan Event {
	ch := make(chan Event)

	go func() {
		defer close(ch)

		send := func(ev Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		results, err := g.retriever.Retrieve(ctx, question, k)
		if err != nil {
			send(Event{Type: EventError, Err: err})
			return
		}

		metadata := make([]types.Metadata, len(results))
		for i, r := range results {
			metadata[i] = r.Metadata
		}
		if !send(Event{Type: EventMetadata, Metadata: metadata, Results: results}) {
			return
		}

		msgs := g.assemble(question, results, turns)

		consumerGone := errors.New("consumer gone")
		err = g.model.GenerateStream(ctx, msgs, func(token string) error {
			if !send(Event{Type: EventToken, Token: token}) {
				return consumerGone
			}
			return nil
		})

		switch {
		case err == nil:
			send(Event{Type: EventDone})
		case errors.Is(err, consumerGone) || errors.Is(err, context.Canceled):
			// Nobody is listening; nothing to report.
		default:
			send(Event{Type: EventError, Err: err})
		}
	}()

	return ch
}
