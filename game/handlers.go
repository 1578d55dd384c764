package game

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type GameHandler struct {
	lobby    *LobbyActor
	presence *PresenceGuard
	users    UserGetter
}

func NewGameHandler(lobby *LobbyActor, presence *PresenceGuard, users UserGetter) *GameHandler {
	return &GameHandler{lobby: lobby, presence: presence, users: users}
}

// PlayHandler upgrades to a websocket and hands the connection to the
// lobby. Optional room/difficulty query params pre-route the player so a
// client does not need a separate join packet after connecting.
func (h *GameHandler) PlayHandler(ctx *gin.Context) {
	id := ctx.GetString("id")

	if id == "" {
		slog.Error("Unexpected error, id not found. What is the middleware doing?",
			"ip", ctx.ClientIP(),
			"user_agent", ctx.Request.UserAgent(),
		)

		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	user, err := h.users.GetUserById(ctx.Request.Context(), id)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	sessionId := uuid.NewString()
	activation := h.presence.AttemptActivate(id, sessionId, ctx.ClientIP())
	if activation.DuplicateSession {
		slog.Info("game: superseding live session", "user", id, "evicted", activation.EvictedSessionId)
	}

	roomId := ctx.Query("room")
	difficulty := Difficulty(ctx.Query("difficulty"))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true }, // origin enforced by server middleware
	}
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Error("WS upgrade failed", "error", err)
		return
	}

	socketConn := NewWebsocketConnection(conn)
	player := NewPlayer(id, user.Username, sessionId, ctx.ClientIP(), socketConn,
		h.lobby.Intake(), h.lobby.Disconnects())

	h.lobby.Connects() <- player
	if roomId != "" || difficulty != "" {
		h.lobby.Intake() <- clientPacketEnvelope{
			packet: ClientPacket{Type: ClientJoin, Join: &JoinPayload{RoomId: roomId, Difficulty: difficulty}},
			from:   player,
		}
	}

	go player.WritePump()
	go player.ReadPump()
}

// RoomsHandler serves the latest room-list snapshot. The snapshot is
// refreshed on a fixed cadence, not per request.
func (h *GameHandler) RoomsHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.lobby.LatestSnapshot())
}
