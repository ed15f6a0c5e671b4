package services

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"matatena-server/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "matatena.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Match{},
		&models.Play{},
		&models.DiceWeighting{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) string {
	t.Helper()
	u := models.User{ID: uuid.NewString(), Username: username}
	require.NoError(t, db.Create(&u).Error)
	return u.ID
}

// recordingNotifier captures fan-out calls for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	joins  []string
	plays  []PlayEvent
	ended  []string
	winner []string
}

func (n *recordingNotifier) ParticipantJoined(matchID, userID, username string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.joins = append(n.joins, userID)
}

func (n *recordingNotifier) PlayMade(matchID string, play PlayEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.plays = append(n.plays, play)
}

func (n *recordingNotifier) MatchEnded(matchID, winnerID, winnerUsername string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended = append(n.ended, matchID)
	n.winner = append(n.winner, winnerID)
}

func TestCreateMatchIssuesCode(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db, true)
	hostID := seedUser(t, db, "ana")

	m, err := svc.Create(hostID)
	require.NoError(t, err)
	require.NotNil(t, m.Code)
	require.Len(t, *m.Code, 5)
	for _, r := range *m.Code {
		require.Contains(t, codeAlphabet, string(r))
	}
	require.Equal(t, hostID, m.HostID)
	require.Nil(t, m.GuestID)
	require.Equal(t, models.MatchStatusWaiting, m.Status())
}

func TestCreateMatchWithoutCodes(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db, false)
	hostID := seedUser(t, db, "ana")

	m, err := svc.Create(hostID)
	require.NoError(t, err)
	require.Nil(t, m.Code)

	_, err = svc.Detail("ABCDE")
	require.ErrorIs(t, err, ErrMatchNotFound)
}

func TestJoinByCodeIsCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db, true)
	notifier := &recordingNotifier{}
	svc.Notifier = notifier

	hostID := seedUser(t, db, "ana")
	guestID := seedUser(t, db, "bruno")

	m, err := svc.Create(hostID)
	require.NoError(t, err)

	detail, err := svc.Join(strings.ToLower(*m.Code), guestID)
	require.NoError(t, err)
	require.NotNil(t, detail.GuestID)
	require.Equal(t, guestID, *detail.GuestID)
	require.Equal(t, models.MatchStatusInProgress, detail.Status)
	require.Equal(t, []string{guestID}, notifier.joins)
}

func TestJoinOwnMatchForbidden(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db, true)
	hostID := seedUser(t, db, "ana")

	m, err := svc.Create(hostID)
	require.NoError(t, err)

	_, err = svc.Join(m.ID, hostID)
	require.ErrorIs(t, err, ErrSelfJoin)
}

func TestJoinFullMatchConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db, true)
	hostID := seedUser(t, db, "ana")
	guestID := seedUser(t, db, "bruno")
	thirdID := seedUser(t, db, "carla")

	m, err := svc.Create(hostID)
	require.NoError(t, err)

	_, err = svc.Join(m.ID, guestID)
	require.NoError(t, err)

	_, err = svc.Join(m.ID, thirdID)
	require.ErrorIs(t, err, ErrMatchFull)
}

func TestConcurrentJoinExactlyOneWins(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db, true)
	hostID := seedUser(t, db, "ana")
	guestA := seedUser(t, db, "bruno")
	guestB := seedUser(t, db, "carla")

	m, err := svc.Create(hostID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, guest := range []string{guestA, guestB} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Join(m.ID, id)
			results <- err
		}(guest)
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrMatchFull):
			conflicts++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, conflicts)
}

func TestFinishSetsWinnerAndTimestamp(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db, true)
	notifier := &recordingNotifier{}
	svc.Notifier = notifier

	hostID := seedUser(t, db, "ana")
	guestID := seedUser(t, db, "bruno")

	m, err := svc.Create(hostID)
	require.NoError(t, err)
	_, err = svc.Join(m.ID, guestID)
	require.NoError(t, err)

	detail, err := svc.Finish(m.ID, hostID, guestID)
	require.NoError(t, err)
	require.NotNil(t, detail.WinnerID)
	require.Equal(t, guestID, *detail.WinnerID)
	require.NotNil(t, detail.EndedAt)
	require.Equal(t, models.MatchStatusEnded, detail.Status)
	require.NotNil(t, detail.WinnerUsername)
	require.Equal(t, "bruno", *detail.WinnerUsername)
	require.Equal(t, []string{guestID}, notifier.winner)
}

func TestFinishTwiceConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db, true)
	hostID := seedUser(t, db, "ana")
	guestID := seedUser(t, db, "bruno")

	m, err := svc.Create(hostID)
	require.NoError(t, err)
	_, err = svc.Join(m.ID, guestID)
	require.NoError(t, err)

	_, err = svc.Finish(m.ID, hostID, hostID)
	require.NoError(t, err)

	// Both participants get the same rejection on a second end request.
	_, err = svc.Finish(m.ID, hostID, hostID)
	require.ErrorIs(t, err, ErrMatchEnded)
	_, err = svc.Finish(m.ID, guestID, guestID)
	require.ErrorIs(t, err, ErrMatchEnded)
}

func TestFinishValidatesParticipants(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db, true)
	hostID := seedUser(t, db, "ana")
	guestID := seedUser(t, db, "bruno")
	otherID := seedUser(t, db, "carla")

	m, err := svc.Create(hostID)
	require.NoError(t, err)

	_, err = svc.Finish(m.ID, hostID, hostID)
	require.ErrorIs(t, err, ErrNoGuestYet)

	_, err = svc.Join(m.ID, guestID)
	require.NoError(t, err)

	_, err = svc.Finish(m.ID, otherID, hostID)
	require.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.Finish(m.ID, hostID, otherID)
	require.ErrorIs(t, err, ErrWinnerNotParticipant)

	_, err = svc.Finish(uuid.NewString(), hostID, hostID)
	require.ErrorIs(t, err, ErrMatchNotFound)
}

func TestDetailJoinsUsernames(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db, true)
	hostID := seedUser(t, db, "ana")
	guestID := seedUser(t, db, "bruno")

	m, err := svc.Create(hostID)
	require.NoError(t, err)
	_, err = svc.Join(m.ID, guestID)
	require.NoError(t, err)

	byID, err := svc.Detail(m.ID)
	require.NoError(t, err)
	require.NotNil(t, byID.HostUsername)
	require.Equal(t, "ana", *byID.HostUsername)
	require.NotNil(t, byID.GuestUsername)
	require.Equal(t, "bruno", *byID.GuestUsername)
	require.Nil(t, byID.WinnerUsername)

	byCode, err := svc.Detail(*m.Code)
	require.NoError(t, err)
	require.Equal(t, byID.ID, byCode.ID)
}

func TestSnapshotReconcilesFromPersistedState(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db, true)
	hostID := seedUser(t, db, "ana")
	guestID := seedUser(t, db, "bruno")
	otherID := seedUser(t, db, "carla")

	m, err := svc.Create(hostID)
	require.NoError(t, err)

	snap, err := svc.Snapshot(m.ID, hostID)
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusWaiting, snap.Status)
	require.Nil(t, snap.Opponent)
	require.False(t, snap.Ended)

	_, err = svc.Join(m.ID, guestID)
	require.NoError(t, err)
	_, err = svc.Finish(m.ID, guestID, guestID)
	require.NoError(t, err)

	snap, err = svc.Snapshot(m.ID, guestID)
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusEnded, snap.Status)
	require.True(t, snap.Ended)
	require.NotNil(t, snap.Opponent)
	require.Equal(t, "ana", *snap.Opponent)
	require.NotNil(t, snap.WinnerID)
	require.Equal(t, guestID, *snap.WinnerID)

	_, err = svc.Snapshot(m.ID, otherID)
	require.ErrorIs(t, err, ErrNotParticipant)

	// Ensure EndedAt really landed with the winner.
	var row models.Match
	require.NoError(t, db.First(&row, "id = ?", m.ID).Error)
	require.NotNil(t, row.EndedAt)
	require.WithinDuration(t, time.Now(), *row.EndedAt, time.Minute)
}
