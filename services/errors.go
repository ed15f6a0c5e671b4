package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// Domain errors. Every validation failure in the match/play services maps
// onto one of these; anything else that bubbles up is a persistence
// failure and surfaces as a generic 500.
var (
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchFull            = errors.New("match is already full")
	ErrMatchEnded           = errors.New("match has already ended")
	ErrSelfJoin             = errors.New("you cannot join your own match")
	ErrNotParticipant       = errors.New("you are not part of this match")
	ErrNoGuestYet           = errors.New("match is still waiting for a second player")
	ErrInvalidColumn        = errors.New("column must be 0, 1 or 2")
	ErrOutOfTurn            = errors.New("it is not your turn")
	ErrWinnerNotParticipant = errors.New("winner must be one of the players")
	ErrMissingField         = errors.New("missing required field")
)

// HTTPStatus maps a domain error onto the API status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrMatchFull),
		errors.Is(err, ErrMatchEnded),
		errors.Is(err, ErrOutOfTurn):
		return fiber.StatusConflict
	case errors.Is(err, ErrSelfJoin),
		errors.Is(err, ErrNotParticipant),
		errors.Is(err, ErrWinnerNotParticipant):
		return fiber.StatusForbidden
	case errors.Is(err, ErrNoGuestYet),
		errors.Is(err, ErrInvalidColumn),
		errors.Is(err, ErrMissingField):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// Message returns the client-safe description of err. Persistence errors
// never leak their text to callers.
func Message(err error) string {
	if HTTPStatus(err) == fiber.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func respondErr(c *fiber.Ctx, err error) error {
	status := HTTPStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("💥 %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": Message(err),
	})
}
