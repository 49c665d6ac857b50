package handlers

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"

	"rankstream/internal/models"
	"rankstream/internal/period"
	"rankstream/internal/repository"
	"rankstream/internal/service"
	"rankstream/internal/store"
	"rankstream/internal/websocket"
)

// LeaderboardHandler handles HTTP requests for the leaderboard engine
type LeaderboardHandler struct {
	scoring   *service.ScoringService
	rankings  *service.RankingService
	hub       *websocket.Hub
	store     store.ScoreStore
	repo      *repository.PostgresRepository
	validator *validator.Validate
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(
	scoring *service.ScoringService,
	rankings *service.RankingService,
	hub *websocket.Hub,
	st store.ScoreStore,
	repo *repository.PostgresRepository,
) *LeaderboardHandler {
	return &LeaderboardHandler{
		scoring:   scoring,
		rankings:  rankings,
		hub:       hub,
		store:     st,
		repo:      repo,
		validator: validator.New(),
	}
}

// AwardScore handles POST /api/v1/scores, called by the reward component
// whenever points are granted. The award is accepted even when the volatile
// store is down; ranking state becomes consistent once it recovers.
func (h *LeaderboardHandler) AwardScore(c *fiber.Ctx) error {
	var req models.AwardRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
	}

	h.scoring.Award(c.Context(), req.UserID, req.Points)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"userId": req.UserID,
		"points": req.Points,
	})
}

// GetLeaderboard handles GET /api/v1/leaderboard
func (h *LeaderboardHandler) GetLeaderboard(c *fiber.Ctx) error {
	pt, err := period.Parse(c.Query("period", "all"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid period type",
			Message: err.Error(),
		})
	}

	page, err := strconv.Atoi(c.Query("page", "0"))
	if err != nil || page < 0 {
		page = 0
	}
	size, err := strconv.Atoi(c.Query("size", "20"))
	if err != nil || size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	result, err := h.rankings.GetPage(c.Context(), pt, c.Query("periodKey"), page, size)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to retrieve leaderboard",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// GetStandings handles GET /api/v1/standings/:userId
func (h *LeaderboardHandler) GetStandings(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid user id",
			Message: "User id cannot be empty",
		})
	}

	standings, err := h.rankings.GetAllPeriodsStanding(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to retrieve standings",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(standings)
}

// GetStatus handles GET /api/v1/status
func (h *LeaderboardHandler) GetStatus(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"connectedClients": h.hub.ConnectionCount(),
		"status":           "ok",
	})
}

// HealthCheck handles GET /api/v1/health
func (h *LeaderboardHandler) HealthCheck(c *fiber.Ctx) error {
	if err := h.store.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error:   "Score store health check failed",
			Message: err.Error(),
		})
	}
	if err := h.repo.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error:   "Database health check failed",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "healthy",
	})
}

// HandleWebSocket upgrades and serves one live viewer connection
func (h *LeaderboardHandler) HandleWebSocket(conn *fiberws.Conn) {
	websocket.ServeWS(h.hub, conn)
}
