package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"matatena-server/services"

	"github.com/gofiber/contrib/websocket"
)

// Hub owns the per-match room registry: match id → connected sessions.
// Rooms exist only while at least one session is subscribed and nothing
// here survives a restart; the Match rows stay the source of truth for
// membership.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*Client]struct{}

	matches *services.MatchService
	plays   *services.PlayService
}

func NewHub(matches *services.MatchService, plays *services.PlayService) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		matches: matches,
		plays:   plays,
	}
}

// HandleConnection is the websocket entrypoint. Identity was attached by
// SocketAuth before the upgrade; an unauthenticated connection never
// reaches this point.
func (h *Hub) HandleConnection(conn *websocket.Conn) {
	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan outboundEvent, sendBuffer),
		userID:   conn.Locals("user_id").(string),
		username: conn.Locals("username").(string),
	}
	go client.writePump()
	defer h.drop(client)

	log.Printf("🔌 %s connected", client.username)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var ev inboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			client.trySend(errorEvent("malformed event"))
			continue
		}
		h.dispatch(client, ev)
	}

	log.Printf("🔌 %s disconnected", client.username)
}

func (h *Hub) dispatch(c *Client, ev inboundEvent) {
	switch ev.Event {
	case evJoinMatch:
		h.subscribe(c, ev.MatchID)

	case evMakeMove:
		if ev.Column == nil {
			c.trySend(errorEvent(services.ErrMissingField.Error()))
			return
		}
		// Success needs no direct reply: the recorded play comes back
		// through the room fan-out, mover included.
		if _, err := h.plays.Register(ev.MatchID, c.userID, *ev.Column); err != nil {
			c.trySend(errorEvent(services.Message(err)))
		}

	case evEndMatch:
		if ev.WinnerID == "" {
			c.trySend(errorEvent(services.ErrMissingField.Error()))
			return
		}
		if _, err := h.matches.Finish(ev.MatchID, c.userID, ev.WinnerID); err != nil {
			c.trySend(errorEvent(services.Message(err)))
		}

	default:
		c.trySend(errorEvent("unknown event: " + ev.Event))
	}
}

// subscribe validates room entry against the Match row, moves the session
// into the room and replies with the sync snapshot. Rejections go only to
// the requesting session and leave the registry untouched.
func (h *Hub) subscribe(c *Client, matchID string) {
	snap, err := h.matches.Snapshot(matchID, c.userID)
	if err != nil {
		c.trySend(errorEvent(services.Message(err)))
		return
	}

	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	h.leaveLocked(c)
	room := h.rooms[matchID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[matchID] = room
	}
	room[c] = struct{}{}
	c.matchID = matchID
	c.trySendLocked(outboundEvent{Event: evGameJoined, Data: snap})
	h.mu.Unlock()

	log.Printf("🎮 %s subscribed to match %s", c.username, matchID)
}

// drop unregisters the session and releases its send channel. Safe to
// call more than once; disconnect cleanup and slow-client eviction both
// land here.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	c.closed = true
	h.leaveLocked(c)
	close(c.send)
	h.mu.Unlock()
}

// leaveLocked removes the session from its room, tearing the room down
// when it empties. Requires hub.mu. Other members are not notified;
// disconnecting is not a game event.
func (h *Hub) leaveLocked(c *Client) {
	if c.matchID == "" {
		return
	}
	if room, ok := h.rooms[c.matchID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.matchID)
		}
	}
	c.matchID = ""
}

func (h *Hub) broadcast(matchID string, ev outboundEvent) {
	var stale []*Client

	h.mu.Lock()
	for c := range h.rooms[matchID] {
		if !c.trySendLocked(ev) {
			stale = append(stale, c)
		}
	}
	h.mu.Unlock()

	// A member that cannot drain its buffer is cut rather than allowed to
	// stall or reorder the room's event stream.
	for _, c := range stale {
		h.drop(c)
		c.conn.Close()
	}
}

// --- services.Notifier ---

func (h *Hub) ParticipantJoined(matchID, userID, username string) {
	h.broadcast(matchID, outboundEvent{
		Event: evParticipantJoined,
		Data:  participantPayload{UserID: userID, Username: username},
	})
}

func (h *Hub) PlayMade(matchID string, play services.PlayEvent) {
	h.broadcast(matchID, outboundEvent{Event: evPlayMade, Data: play})
}

func (h *Hub) MatchEnded(matchID, winnerID, winnerUsername string) {
	h.broadcast(matchID, outboundEvent{
		Event: evGameEnded,
		Data:  endedPayload{WinnerID: winnerID, WinnerUsername: winnerUsername},
	})
}
