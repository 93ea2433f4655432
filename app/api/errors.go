package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"askmydocs/types"
)

// ErrorHandler maps failures onto HTTP codes: missing sources are 404,
// malformed bodies 400, validation failures 422, upstream model and
// index failures 502. Anything unrecognized stays a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if apiErr, ok := err.(Error); ok {
		return c.Status(apiErr.Code).JSON(apiErr)
	}
	if valErr, ok := err.(ValidationError); ok {
		return c.Status(valErr.Status).JSON(valErr)
	}

	var fiberErr *fiber.Error
	switch {
	case errors.Is(err, types.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(NewError(fiber.StatusNotFound, err.Error()))
	case isUpstreamError(err):
		slog.Default().Error("upstream dependency failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(NewError(fiber.StatusBadGateway, err.Error()))
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	slog.Default().Error("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(NewError(fiber.StatusInternalServerError, err.Error()))
}

func isUpstreamError(err error) bool {
	var (
		embedErr *types.EmbeddingError
		writeErr *types.IndexWriteError
		queryErr *types.IndexQueryError
		genErr   *types.GenerationError
	)
	return errors.As(err, &embedErr) ||
		errors.As(err, &writeErr) ||
		errors.As(err, &queryErr) ||
		errors.As(err, &genErr)
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}
