package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"matatena-server/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

// Short codes avoid lookalike characters by construction: uppercase plus
// digits only, five characters.
const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 5
)

// MatchService owns the match lifecycle: create, join, end, and the
// projections both surfaces read. CodesEnabled switches short-code
// addressing on; without it matches are reachable by uuid only.
type MatchService struct {
	DB           *gorm.DB
	CodesEnabled bool
	Notifier     Notifier

	locks *matchLocks
}

func NewMatchService(db *gorm.DB, codesEnabled bool) *MatchService {
	return &MatchService{
		DB:           db,
		CodesEnabled: codesEnabled,
		locks:        newMatchLocks(),
	}
}

// MatchDetail is the full match projection with participant usernames
// joined in. Username pointers stay nil while the seat (or winner) is
// unset.
type MatchDetail struct {
	ID             string     `json:"id"`
	Code           *string    `json:"code,omitempty"`
	HostID         string     `json:"host_id"`
	GuestID        *string    `json:"guest_id,omitempty"`
	WinnerID       *string    `json:"winner_id,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Status         string     `json:"status"`
	HostUsername   *string    `json:"host_username,omitempty"`
	GuestUsername  *string    `json:"guest_username,omitempty"`
	WinnerUsername *string    `json:"winner_username,omitempty"`
}

// MatchSnapshot is the one-time sync sent to a freshly subscribed socket.
type MatchSnapshot struct {
	MatchID  string  `json:"matchId"`
	Status   string  `json:"status"`
	Opponent *string `json:"opponent,omitempty"`
	Ended    bool    `json:"ended"`
	WinnerID *string `json:"winnerId,omitempty"`
}

// Create opens a new match hosted by hostID. With codes enabled the code
// is regenerated until no live match holds it; the unique index backs the
// check, so a race on the same code just triggers another round.
func (s *MatchService) Create(hostID string) (*models.Match, error) {
	for {
		m := &models.Match{ID: uuid.NewString(), HostID: hostID}
		if s.CodesEnabled {
			code, err := gonanoid.Generate(codeAlphabet, codeLength)
			if err != nil {
				return nil, err
			}
			var taken int64
			if err := s.DB.Model(&models.Match{}).Where("code = ?", code).Count(&taken).Error; err != nil {
				return nil, err
			}
			if taken > 0 {
				continue
			}
			m.Code = &code
		}

		err := s.DB.Create(m).Error
		if err == nil {
			log.Printf("🎲 Match %s created by %s (code=%s)", m.ID, hostID, strOrEmpty(m.Code))
			return m, nil
		}
		if s.CodesEnabled && errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return nil, err
	}
}

// Join claims the guest seat. The seat claim is a conditional update, so
// of two concurrent joins only the one that still sees a free seat wins.
func (s *MatchService) Join(ref, guestID string) (*MatchDetail, error) {
	m, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	if m.HostID == guestID {
		return nil, ErrSelfJoin
	}
	if m.Ended() {
		return nil, ErrMatchEnded
	}
	if m.HasGuest() {
		return nil, ErrMatchFull
	}

	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND guest_id IS NULL", m.ID).
		Update("guest_id", guestID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrMatchFull
	}

	detail, err := s.detailByID(m.ID)
	if err != nil {
		return nil, err
	}
	log.Printf("🤝 %s joined match %s", guestID, m.ID)
	if s.Notifier != nil {
		s.Notifier.ParticipantJoined(m.ID, guestID, strOrEmpty(detail.GuestUsername))
	}
	return detail, nil
}

// Finish declares the winner and closes the match. Only a participant may
// end it, the winner must be host or guest, and a second end request is a
// conflict, never a silent success.
func (s *MatchService) Finish(matchID, callerID, winnerID string) (*MatchDetail, error) {
	release := s.locks.Acquire(matchID)
	defer release()

	var m models.Match
	if err := s.DB.First(&m, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if !m.IsParticipant(callerID) {
		return nil, ErrNotParticipant
	}
	if !m.HasGuest() {
		return nil, ErrNoGuestYet
	}
	if !m.IsParticipant(winnerID) {
		return nil, ErrWinnerNotParticipant
	}

	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND ended_at IS NULL", matchID).
		Updates(map[string]interface{}{
			"winner_id": winnerID,
			"ended_at":  time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrMatchEnded
	}

	detail, err := s.detailByID(matchID)
	if err != nil {
		return nil, err
	}
	log.Printf("🏁 Match %s ended, winner %s", matchID, winnerID)
	if s.Notifier != nil {
		s.Notifier.MatchEnded(matchID, winnerID, strOrEmpty(detail.WinnerUsername))
	}
	return detail, nil
}

// Detail returns the full projection for a match addressed by id or code.
func (s *MatchService) Detail(ref string) (*MatchDetail, error) {
	m, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return s.detailByID(m.ID)
}

// Snapshot builds the subscribe-time sync for userID, who must be a
// participant. The socket channel is not authoritative, so the snapshot
// always reflects the persisted row.
func (s *MatchService) Snapshot(matchID, userID string) (*MatchSnapshot, error) {
	var m models.Match
	if err := s.DB.First(&m, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if !m.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}

	snap := &MatchSnapshot{
		MatchID:  m.ID,
		Status:   m.Status(),
		Ended:    m.Ended(),
		WinnerID: m.WinnerID,
	}

	opponentID := ""
	if m.HostID != userID {
		opponentID = m.HostID
	} else if m.GuestID != nil {
		opponentID = *m.GuestID
	}
	if opponentID != "" {
		var opponent models.User
		if err := s.DB.First(&opponent, "id = ?", opponentID).Error; err == nil {
			snap.Opponent = &opponent.Username
		}
	}
	return snap, nil
}

// resolve loads the canonical match row from either addressing form. A
// 5-char code and a uuid cannot collide, so the ref shape picks the
// lookup path.
func (s *MatchService) resolve(ref string) (*models.Match, error) {
	var m models.Match

	if _, err := uuid.Parse(ref); err == nil {
		err := s.DB.First(&m, "id = ?", ref).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		if err != nil {
			return nil, err
		}
		return &m, nil
	}

	if !s.CodesEnabled || len(ref) != codeLength {
		return nil, ErrMatchNotFound
	}
	err := s.DB.First(&m, "code = ?", strings.ToUpper(ref)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MatchService) detailByID(id string) (*MatchDetail, error) {
	var d MatchDetail
	err := s.DB.Table("matches").
		Select(`matches.id, matches.code, matches.host_id, matches.guest_id,
			matches.winner_id, matches.started_at, matches.ended_at,
			host.username AS host_username,
			guest.username AS guest_username,
			winner.username AS winner_username`).
		Joins("LEFT JOIN users host ON host.id = matches.host_id").
		Joins("LEFT JOIN users guest ON guest.id = matches.guest_id").
		Joins("LEFT JOIN users winner ON winner.id = matches.winner_id").
		Where("matches.id = ?", id).
		Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Status = (&models.Match{GuestID: d.GuestID, EndedAt: d.EndedAt}).Status()
	return &d, nil
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// --- HTTP handlers ---

// CreateMatch handles POST /games.
func (s *MatchService) CreateMatch(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	m, err := s.Create(userID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": "match created",
		"data": fiber.Map{
			"gameId":     m.ID,
			"gameCode":   m.Code,
			"hostUserId": m.HostID,
		},
	})
}

// JoinMatchByID handles POST /games/:gameId/join.
func (s *MatchService) JoinMatchByID(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	detail, err := s.Join(c.Params("gameId"), userID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "joined match",
		"data":    fiber.Map{"game": detail},
	})
}

// JoinMatchByCode handles POST /games/join with {"code": "..."} in the body.
func (s *MatchService) JoinMatchByCode(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var body struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.Code) == "" {
		return respondErr(c, ErrMissingField)
	}

	detail, err := s.Join(strings.TrimSpace(body.Code), userID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "joined match",
		"data":    fiber.Map{"game": detail},
	})
}

// EndMatch handles PUT /games/:gameId/end with {"winnerId": "..."}.
func (s *MatchService) EndMatch(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var body struct {
		WinnerID string `json:"winnerId"`
	}
	if err := c.BodyParser(&body); err != nil || body.WinnerID == "" {
		return respondErr(c, ErrMissingField)
	}

	detail, err := s.Finish(c.Params("gameId"), userID, body.WinnerID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "match ended",
		"data": fiber.Map{
			"gameId":         detail.ID,
			"winnerId":       detail.WinnerID,
			"winnerUsername": detail.WinnerUsername,
		},
	})
}

// GetMatch handles GET /games/:gameId.
func (s *MatchService) GetMatch(c *fiber.Ctx) error {
	detail, err := s.Detail(c.Params("gameId"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"game": detail},
	})
}

// GetMatchByCode handles GET /games/code/:code.
func (s *MatchService) GetMatchByCode(c *fiber.Ctx) error {
	detail, err := s.Detail(c.Params("code"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"game": detail},
	})
}
