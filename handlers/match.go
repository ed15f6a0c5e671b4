package handlers

import (
	"matatena-server/middleware"
	"matatena-server/services"

	"github.com/gofiber/fiber/v2"
)

// SetupMatchRoutes wires the match API. Every route requires a verified
// access token; the caller's identity comes from the token claims.
func SetupMatchRoutes(app *fiber.App, matches *services.MatchService, plays *services.PlayService) {
	games := app.Group("/games", middleware.RequireAuth())

	games.Post("/", matches.CreateMatch)
	games.Post("/join", matches.JoinMatchByCode)
	games.Post("/:gameId/join", matches.JoinMatchByID)
	games.Put("/:gameId/end", matches.EndMatch)
	games.Get("/code/:code", matches.GetMatchByCode)
	games.Get("/:gameId", matches.GetMatch)

	games.Post("/:gameId/plays", plays.RegisterPlay)
	games.Get("/:gameId/plays", plays.GetMatchPlays)
}
