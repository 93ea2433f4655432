package api

import (
	"github.com/gofiber/fiber/v2"

	"askmydocs/store"
)

type CheckHandler struct {
	index store.Indexer
}

func NewCheckHandler(index store.Indexer) *CheckHandler {
	return &CheckHandler{index: index}
}

// HandleHealthy answers liveness probes. The index ping is a real
// backend round-trip, so a dead store turns the probe red.
func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	if err := h.index.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"result": "index unavailable"})
	}
	return c.JSON(fiber.Map{"result": "ok"})
}
