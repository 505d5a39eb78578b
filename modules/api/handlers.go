package api

import (
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/example/workspace-chat/modules/activity"
	"github.com/example/workspace-chat/modules/chat"
)

// registerRoutes sets up all HTTP and WebSocket routes.
func (m *Module) registerRoutes(app *fiber.App) {
	app.Get("/health", m.healthCheck)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:room_id/:user_id", websocket.New(m.handleWebSocket))

	api := app.Group("/api")
	api.Post("/create-room", m.createRoom)
	api.Get("/rooms", m.listRooms)
	api.Get("/activity", m.activitySummary)
	api.Get("/room/:room_id", m.getRoom)
	api.Post("/room/:room_id/join", m.joinRoom)
	api.Get("/room/:room_id/messages", m.getMessages)
	api.Get("/room/:room_id/stats", m.getRoomStats)
}

// healthCheck handles GET /health.
func (m *Module) healthCheck(c *fiber.Ctx) error {
	rooms, conns := m.host.Registry().Counts()
	return c.JSON(HealthResponse{
		Status:           "healthy",
		ActiveRooms:      rooms,
		TotalConnections: conns,
		Timestamp:        time.Now(),
	})
}

// createRoom handles POST /api/create-room.
func (m *Module) createRoom(c *fiber.Ctx) error {
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := m.chat.CreateRoom(c.UserContext(), req.RoomName, req.Username)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(CreateRoomResponse{
		RoomID:     resp.RoomID,
		RoomName:   resp.RoomName,
		UserID:     resp.UserID,
		InviteLink: c.BaseURL() + "/room/" + resp.RoomID,
		Message:    "room created",
	})
}

// getRoom handles GET /api/room/:room_id.
func (m *Module) getRoom(c *fiber.Ctx) error {
	room, err := m.chat.GetRoom(c.UserContext(), c.Params("room_id"))
	if err != nil {
		return err
	}
	return c.JSON(room)
}

// joinRoom handles POST /api/room/:room_id/join.
func (m *Module) joinRoom(c *fiber.Ctx) error {
	var req JoinRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := m.chat.JoinRoom(c.UserContext(), c.Params("room_id"), req.Username)
	if err != nil {
		return err
	}

	return c.JSON(JoinRoomResponse{
		RoomID:   resp.RoomID,
		RoomName: resp.RoomName,
		UserID:   resp.UserID,
		Message:  "joined room",
	})
}

// getMessages handles GET /api/room/:room_id/messages.
func (m *Module) getMessages(c *fiber.Ctx) error {
	roomID := c.Params("room_id")
	messages, err := m.chat.RoomMessages(c.UserContext(), roomID, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(MessagesResponse{RoomID: roomID, Messages: messages})
}

// listRooms handles GET /api/rooms.
func (m *Module) listRooms(c *fiber.Ctx) error {
	rooms, err := m.chat.ListRooms(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(RoomListResponse{Rooms: rooms})
}

// getRoomStats handles GET /api/room/:room_id/stats. Events reach the
// activity module asynchronously, so a known room without stats yet reports
// zero activity.
func (m *Module) getRoomStats(c *fiber.Ctx) error {
	roomID := c.Params("room_id")
	if _, err := m.chat.GetRoom(c.UserContext(), roomID); err != nil {
		return err
	}

	stats, err := m.stats.RoomStats(c.UserContext(), roomID)
	if errors.Is(err, activity.ErrNoActivity) {
		return c.JSON(activity.RoomStats{RoomID: roomID, Departures: map[string]int64{}})
	}
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// activitySummary handles GET /api/activity.
func (m *Module) activitySummary(c *fiber.Ctx) error {
	summary, err := m.stats.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// handleWebSocket serves /ws/:room_id/:user_id for the lifetime of the
// connection.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	m.sessions.Add(1)
	defer m.sessions.Done()

	roomID := c.Params("room_id")
	userID := c.Params("user_id")

	// JSON escaping can expand a message up to six bytes per rune
	c.SetReadLimit(int64(m.cfg.MaxMessageLength)*6 + 1024)

	conn := chat.NewConnection(roomID, userID, c, m.host.ConnectionOptions(), m.logger)
	session := chat.NewSession(m.host.Registry(), conn, m.host.SessionOptions(), m.logger)

	m.logger.Debug("WebSocket connected", "room_id", roomID, "user_id", userID, "conn_id", conn.ID)
	if err := session.Run(m.sessionCtx); err != nil {
		m.logger.Info("WebSocket rejected", "room_id", roomID, "user_id", userID, "error", err)
		return
	}
	m.logger.Debug("WebSocket disconnected", "room_id", roomID, "user_id", userID, "conn_id", conn.ID)
}

// errorHandler maps handler errors onto HTTP responses.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	var domainErr *chat.Error
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &domainErr):
		return c.Status(statusFor(domainErr.Kind)).JSON(ErrorResponse{
			Error:   string(domainErr.Kind),
			Reason:  domainErr.Reason,
			Message: domainErr.Message,
		})
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Error:   "request_error",
			Message: fiberErr.Message,
		})
	}

	m.logger.Error("HTTP error", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "internal_error",
		Message: "Internal Server Error",
	})
}

func statusFor(kind chat.Kind) int {
	switch kind {
	case chat.KindValidation:
		return fiber.StatusBadRequest
	case chat.KindNotFound:
		return fiber.StatusNotFound
	case chat.KindNotMember:
		return fiber.StatusForbidden
	case chat.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
