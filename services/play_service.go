package services

import (
	"errors"
	"log"
	"time"

	"matatena-server/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Valid target columns. The board has three columns addressed by raw
// index; the die value is never supplied by the client.
const (
	MinColumn = 0
	MaxColumn = 2
)

// PlayService validates and records moves. It shares the per-match lock
// table with MatchService so a move can never interleave with the end of
// the same match.
type PlayService struct {
	DB       *gorm.DB
	Matches  *MatchService
	Notifier Notifier
}

func NewPlayService(db *gorm.DB, matches *MatchService) *PlayService {
	return &PlayService{DB: db, Matches: matches}
}

// PlayResult is what the acting player gets back: the persisted move plus
// their display name.
type PlayResult struct {
	Play     models.Play `json:"play"`
	Username string      `json:"username"`
}

// PlayView is one history row joined with the actor's username.
type PlayView struct {
	ID        uint      `json:"id"`
	MatchID   string    `json:"match_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Dice      int       `gorm:"column:dice" json:"dice"`
	Col       int       `gorm:"column:col" json:"column"`
	CreatedAt time.Time `json:"created_at"`
}

// Register records one move for userID on matchID. The whole
// read-check-roll-insert sequence runs inside the match's critical
// section: two racing submissions cannot both pass the alternation check,
// and the fan-out fires in the same scope so delivered order equals
// persisted order.
func (p *PlayService) Register(matchID, userID string, column int) (*PlayResult, error) {
	release := p.Matches.locks.Acquire(matchID)
	defer release()

	var m models.Match
	if err := p.DB.First(&m, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if !m.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if m.Ended() {
		return nil, ErrMatchEnded
	}
	if !m.HasGuest() {
		return nil, ErrNoGuestYet
	}
	if column < MinColumn || column > MaxColumn {
		return nil, ErrInvalidColumn
	}

	// Turn order is derived from history, not stored: whoever made the
	// latest play must not make the next one. The very first play is open
	// to either participant.
	var last models.Play
	err := p.DB.Where("match_id = ?", matchID).Order("id DESC").First(&last).Error
	switch {
	case err == nil:
		if last.UserID == userID {
			return nil, ErrOutOfTurn
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, err
	}

	weights, err := p.weightsFor(userID)
	if err != nil {
		return nil, err
	}

	play := &models.Play{
		MatchID: matchID,
		UserID:  userID,
		Dice:    rollDie(weights),
		Col:     column,
	}
	if err := p.DB.Create(play).Error; err != nil {
		return nil, err
	}

	var user models.User
	username := ""
	if err := p.DB.First(&user, "id = ?", userID).Error; err == nil {
		username = user.Username
	}

	log.Printf("🎲 %s rolled %d into column %d on match %s", userID, play.Dice, column, matchID)

	if p.Notifier != nil {
		p.Notifier.PlayMade(matchID, PlayEvent{
			PlayID:    play.ID,
			UserID:    userID,
			Username:  username,
			Dice:      play.Dice,
			Column:    play.Col,
			CreatedAt: play.CreatedAt,
		})
	}
	return &PlayResult{Play: *play, Username: username}, nil
}

// History returns the match's plays in creation order with usernames.
func (p *PlayService) History(matchID string) ([]PlayView, error) {
	var count int64
	if err := p.DB.Model(&models.Match{}).Where("id = ?", matchID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrMatchNotFound
	}

	views := []PlayView{}
	err := p.DB.Table("plays").
		Select("plays.id, plays.match_id, plays.user_id, plays.dice, plays.col, plays.created_at, users.username").
		Joins("JOIN users ON users.id = plays.user_id").
		Where("plays.match_id = ?", matchID).
		Order("plays.id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

// weightsFor fetches the user's die weighting, inserting the uniform
// default row the first time. A concurrent first roll may insert first;
// the duplicate is harmless, the defaults are identical.
func (p *PlayService) weightsFor(userID string) ([6]float64, error) {
	var w models.DiceWeighting
	err := p.DB.First(&w, "user_id = ?", userID).Error
	if err == nil {
		return w.Weights(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return [6]float64{}, err
	}

	w = *models.UniformWeighting(userID)
	if err := p.DB.Create(&w).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return [6]float64{}, err
	}
	return w.Weights(), nil
}

// --- HTTP handlers ---

// RegisterPlay handles POST /games/:gameId/plays with {"column": n}.
func (p *PlayService) RegisterPlay(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var body struct {
		Column *int `json:"column"`
	}
	if err := c.BodyParser(&body); err != nil || body.Column == nil {
		return respondErr(c, ErrMissingField)
	}

	result, err := p.Register(c.Params("gameId"), userID, *body.Column)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": "play recorded",
		"data": fiber.Map{
			"playId":   result.Play.ID,
			"gameId":   result.Play.MatchID,
			"userId":   result.Play.UserID,
			"username": result.Username,
			"dice":     result.Play.Dice,
			"column":   result.Play.Col,
		},
	})
}

// GetMatchPlays handles GET /games/:gameId/plays.
func (p *PlayService) GetMatchPlays(c *fiber.Ctx) error {
	plays, err := p.History(c.Params("gameId"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"plays": plays},
	})
}
