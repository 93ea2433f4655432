package api

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"askmydocs/app/agent"
	"askmydocs/types"
)

type QueryHandler struct {
	agent  *agent.Generator
	logger *slog.Logger
}

func NewQueryHandler(g *agent.Generator) *QueryHandler {
	return &QueryHandler{
		agent:  g,
		logger: slog.Default().With("component", "api"),
	}
}

// HandleQuery answers one question in batch mode: retrieved context
// and the full generated answer in a single response.
func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	resp, err := h.agent.Query(c.Context(), params.Query, params.RecentMessages, params.TopK)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// HandleQueryStream answers one question as server-sent events: one
// metadata event carrying the retrieved context, then token events,
// then a single done or error event. A failed write cancels the
// upstream generation.
func (h *QueryHandler) HandleQueryStream(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// The stream writer outlives the handler, so cancellation is owned
	// here rather than tied to the request context.
	ctx, cancel := context.WithCancel(context.Background())
	events := h.agent.QueryStream(ctx, params.Query, params.RecentMessages, params.TopK)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		for ev := range events {
			if err := writeEvent(w, ev); err != nil {
				h.logger.Debug("stream consumer gone", "error", err)
				return
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, ev agent.Event) error {
	var data any
	switch ev.Type {
	case agent.EventMetadata:
		data = fiber.Map{"results": ev.Results}
	case agent.EventToken:
		data = fiber.Map{"token": ev.Token}
	case agent.EventError:
		data = fiber.Map{"error": ev.Err.Error()}
	default:
		data = fiber.Map{}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("event: " + string(ev.Type) + "\ndata: " + string(payload) + "\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
