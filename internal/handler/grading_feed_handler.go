package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/observability"
	"github.com/noah-isme/bargeh-api/internal/service"
)

const (
	feedPingInterval = 30 * time.Second
	feedWriteTimeout = 10 * time.Second
)

// GradeFeedSource yields live grade events of one assignment.
type GradeFeedSource interface {
	Subscribe(assignmentID uint) (<-chan dto.GradeEvent, func())
}

// feedMessage is the first frame sent once the subscription is active.
type feedMessage struct {
	Type         string `json:"type"`
	AssignmentID uint   `json:"assignment_id"`
}

// GradingFeedHandler streams grade events of an assignment over a websocket.
type GradingFeedHandler struct {
	grading service.GradingService
	source  GradeFeedSource
	logger  zerolog.Logger
}

// NewGradingFeedHandler constructs the handler.
func NewGradingFeedHandler(grading service.GradingService, source GradeFeedSource, logger zerolog.Logger) *GradingFeedHandler {
	return &GradingFeedHandler{
		grading: grading,
		source:  source,
		logger:  logger.With().Str("component", "grading_feed_handler").Logger(),
	}
}

// Register binds the feed route. Authorization happens before the upgrade so
// refused callers get a regular JSON error.
func (h *GradingFeedHandler) Register(router fiber.Router) {
	router.Get("/assignments/:assignmentId/feed", h.authorize, websocket.New(h.serve))
}

func (h *GradingFeedHandler) authorize(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.grading.AuthorizeFeed(requestContext(c), actorFromContext(c), assignmentID); err != nil {
		return respondError(c, h.logger, err)
	}
	c.Locals("feed_assignment_id", assignmentID)
	return c.Next()
}

func (h *GradingFeedHandler) serve(conn *websocket.Conn) {
	assignmentID, _ := conn.Locals("feed_assignment_id").(uint)
	logger := h.logger.With().
		Uint("assignment_id", assignmentID).
		Interface("user_id", conn.Locals("user_id")).
		Interface("correlation_id", conn.Locals("correlation_id")).
		Logger()

	events, cancel := h.source.Subscribe(assignmentID)
	defer cancel()

	observability.FeedClients().Inc()
	defer observability.FeedClients().Dec()
	logger.Info().Msg("grading feed connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, feedMessage{Type: "feed.ready", AssignmentID: assignmentID}); err != nil {
		return
	}

	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			logger.Info().Msg("grading feed disconnected")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, event); err != nil {
				logger.Debug().Err(err).Msg("grading feed write failed")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(feedWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (h *GradingFeedHandler) write(conn *websocket.Conn, payload interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(payload)
}
