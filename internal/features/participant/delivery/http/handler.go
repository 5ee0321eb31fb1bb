package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/azatarm-prog/telegive-participant/internal/common/errors"
	"github.com/azatarm-prog/telegive-participant/internal/common/middleware"
	captchamodels "github.com/azatarm-prog/telegive-participant/internal/features/captcha/models"
	"github.com/azatarm-prog/telegive-participant/internal/features/participant/models"
	"github.com/azatarm-prog/telegive-participant/internal/features/participant/repository"
	"github.com/azatarm-prog/telegive-participant/internal/features/participant/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	historyLimit    = 10
)

type ParticipantHandler struct {
	service *service.Service
}

func NewParticipantHandler(service *service.Service) *ParticipantHandler {
	return &ParticipantHandler{service: service}
}

func (h *ParticipantHandler) RegisterRoutes(router *gin.RouterGroup) {
	participants := router.Group("/participants")
	{
		participants.POST("/register", h.register)
		participants.GET("/list/:giveaway_id", h.list)
		participants.GET("/stats/:giveaway_id", h.stats)
		participants.GET("/status/:giveaway_id/:user_id", h.status)
		participants.GET("/history/:user_id", h.history)
		participants.POST("/select-winners/:giveaway_id", h.selectWinners)
		participants.GET("/winners/:giveaway_id", h.winners)
	}
}

// RegisterPublicRoutes exposes the self-service reads to mini-app users
// authenticated via Telegram init data.
func (h *ParticipantHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.GET("/participants/me/history", h.myHistory)
	router.GET("/participants/me/status/:giveaway_id", h.myStatus)
}

// Display fields are capped at the column width so an oversized value is
// rejected as a validation error instead of surfacing as a database error.
type registerRequest struct {
	GiveawayID int64  `json:"giveaway_id" binding:"required"`
	UserID     int64  `json:"user_id" binding:"required"`
	Username   string `json:"username" binding:"max=100"`
	FirstName  string `json:"first_name" binding:"max=100"`
	LastName   string `json:"last_name" binding:"max=100"`
}

type registerResponse struct {
	Success bool                       `json:"success"`
	Result  *models.RegistrationResult `json:"result"`
}

// @Summary Register a participant
// @Description Registers the user for the giveaway. First-time users get a captcha session back instead; repeat calls for the same pair are conflicts
// @Tags participants
// @Accept json
// @Produce json
// @Security ServiceToken
// @Param input body registerRequest true "Registration data"
// @Success 201 {object} registerResponse "Newly registered"
// @Success 200 {object} registerResponse "Captcha required first"
// @Failure 409 {object} middleware.ErrorResponse "Already registered"
// @Router /participants/register [post]
func (h *ParticipantHandler) register(c *gin.Context) {
	var input registerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Invalid request body"))
		return
	}

	result, err := h.service.Register(c.Request.Context(), service.RegisterRequest{
		GiveawayID: input.GiveawayID,
		UserID:     input.UserID,
		Meta: models.DisplayMeta{
			Username:  input.Username,
			FirstName: input.FirstName,
			LastName:  input.LastName,
		},
	})
	if err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to register participant"))
		return
	}

	switch result.Status {
	case models.StatusAlreadyRegistered:
		appErr := apperrors.New(apperrors.ErrCodeAlreadyParticipated, "User already participates in this giveaway").
			WithDetail("participated_at", result.Participant.ParticipatedAt)
		middleware.SendError(c, appErr)
	case models.StatusVerificationRequired:
		c.JSON(http.StatusOK, registerResponse{Success: true, Result: result})
	default:
		c.JSON(http.StatusCreated, registerResponse{Success: true, Result: result})
	}
}

type listResponse struct {
	Success      bool                  `json:"success"`
	GiveawayID   int64                 `json:"giveaway_id"`
	Participants []*models.Participant `json:"participants"`
	Total        int                   `json:"total"`
	Offset       int                   `json:"offset"`
	Limit        int                   `json:"limit"`
}

// @Summary List participants of a giveaway
// @Description Returns registrations ordered by participation time, oldest first
// @Tags participants
// @Produce json
// @Security ServiceToken
// @Param giveaway_id path int true "Giveaway id"
// @Param offset query int false "Pagination offset"
// @Param limit query int false "Page size, capped at 500"
// @Success 200 {object} listResponse
// @Router /participants/list/{giveaway_id} [get]
func (h *ParticipantHandler) list(c *gin.Context) {
	giveawayID, ok := pathInt64(c, "giveaway_id")
	if !ok {
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	participants, total, err := h.service.List(c.Request.Context(), giveawayID, offset, limit)
	if err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to list participants"))
		return
	}

	c.JSON(http.StatusOK, listResponse{
		Success:      true,
		GiveawayID:   giveawayID,
		Participants: participants,
		Total:        total,
		Offset:       offset,
		Limit:        limit,
	})
}

type statsResponse struct {
	Success  bool          `json:"success"`
	Stats    *models.Stats `json:"stats"`
	Eligible int           `json:"eligible"`
}

// @Summary Participation stats for a giveaway
// @Tags participants
// @Produce json
// @Security ServiceToken
// @Param giveaway_id path int true "Giveaway id"
// @Success 200 {object} statsResponse
// @Router /participants/stats/{giveaway_id} [get]
func (h *ParticipantHandler) stats(c *gin.Context) {
	giveawayID, ok := pathInt64(c, "giveaway_id")
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), giveawayID)
	if err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to get participant stats"))
		return
	}

	eligible, err := h.service.EligibleCount(c.Request.Context(), giveawayID)
	if err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to count eligible participants"))
		return
	}

	c.JSON(http.StatusOK, statsResponse{Success: true, Stats: stats, Eligible: eligible})
}

type participantResponse struct {
	Success     bool                `json:"success"`
	Participant *models.Participant `json:"participant"`
}

// @Summary Check one user's registration in a giveaway
// @Tags participants
// @Produce json
// @Security ServiceToken
// @Param giveaway_id path int true "Giveaway id"
// @Param user_id path int true "Telegram user id"
// @Success 200 {object} participantResponse
// @Failure 404 {object} middleware.ErrorResponse "Not registered"
// @Router /participants/status/{giveaway_id}/{user_id} [get]
func (h *ParticipantHandler) status(c *gin.Context) {
	giveawayID, ok := pathInt64(c, "giveaway_id")
	if !ok {
		return
	}
	userID, ok := pathInt64(c, "user_id")
	if !ok {
		return
	}

	participant, err := h.service.Get(c.Request.Context(), giveawayID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrParticipantNotFound) {
			middleware.SendError(c, apperrors.New(apperrors.ErrCodeParticipantNotFound, "User is not registered for this giveaway"))
			return
		}
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to get participant"))
		return
	}

	c.JSON(http.StatusOK, participantResponse{Success: true, Participant: participant})
}

type historyResponse struct {
	Success        bool                             `json:"success"`
	UserID         int64                            `json:"user_id"`
	Record         *captchamodels.UserCaptchaRecord `json:"record"`
	Participations []*models.Participant            `json:"participations"`
}

// @Summary Recent participations of a user
// @Description Returns the user's latest registrations across giveaways, newest first
// @Tags participants
// @Produce json
// @Security ServiceToken
// @Param user_id path int true "Telegram user id"
// @Success 200 {object} historyResponse
// @Router /participants/history/{user_id} [get]
func (h *ParticipantHandler) history(c *gin.Context) {
	userID, ok := pathInt64(c, "user_id")
	if !ok {
		return
	}

	h.respondHistory(c, userID)
}

type selectWinnersRequest struct {
	WinnerCount int `json:"winner_count" binding:"required,min=1"`
}

type selectionResponse struct {
	Success bool                    `json:"success"`
	Result  *models.SelectionResult `json:"result"`
}

// @Summary Select winners for a giveaway
// @Description Draws winners from the eligible pool with a cryptographic shuffle. Exactly one selection can ever succeed per giveaway
// @Tags winners
// @Accept json
// @Produce json
// @Security ServiceToken
// @Param giveaway_id path int true "Giveaway id"
// @Param input body selectWinnersRequest true "Number of winners"
// @Success 200 {object} selectionResponse
// @Failure 409 {object} middleware.ErrorResponse "Winners already selected"
// @Failure 412 {object} middleware.ErrorResponse "No eligible participants"
// @Router /participants/select-winners/{giveaway_id} [post]
func (h *ParticipantHandler) selectWinners(c *gin.Context) {
	giveawayID, ok := pathInt64(c, "giveaway_id")
	if !ok {
		return
	}

	var input selectWinnersRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Invalid request body"))
		return
	}

	result, err := h.service.SelectWinners(c.Request.Context(), giveawayID, input.WinnerCount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelectionDone):
			middleware.SendError(c, apperrors.New(apperrors.ErrCodeSelectionDone, "Winners were already selected for this giveaway"))
		case errors.Is(err, service.ErrNoEligibleParticipants):
			middleware.SendError(c, apperrors.New(apperrors.ErrCodeInsufficientParticipants, "No eligible participants to select from"))
		default:
			middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to select winners"))
		}
		return
	}

	c.JSON(http.StatusOK, selectionResponse{Success: true, Result: result})
}

// @Summary Recorded winners of a giveaway
// @Description Returns the audit log and winner rows for an already decided giveaway
// @Tags winners
// @Produce json
// @Security ServiceToken
// @Param giveaway_id path int true "Giveaway id"
// @Success 200 {object} selectionResponse
// @Failure 404 {object} middleware.ErrorResponse "No selection recorded yet"
// @Router /participants/winners/{giveaway_id} [get]
func (h *ParticipantHandler) winners(c *gin.Context) {
	giveawayID, ok := pathInt64(c, "giveaway_id")
	if !ok {
		return
	}

	result, err := h.service.Winners(c.Request.Context(), giveawayID)
	if err != nil {
		if errors.Is(err, repository.ErrLogNotFound) {
			middleware.SendError(c, apperrors.New(apperrors.ErrCodeNotFound, "No winner selection recorded for this giveaway"))
			return
		}
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to get winners"))
		return
	}

	c.JSON(http.StatusOK, selectionResponse{Success: true, Result: result})
}

func (h *ParticipantHandler) myHistory(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeAuthRequired, "Authentication required"))
		return
	}

	h.respondHistory(c, userID)
}

func (h *ParticipantHandler) myStatus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeAuthRequired, "Authentication required"))
		return
	}
	giveawayID, ok := pathInt64(c, "giveaway_id")
	if !ok {
		return
	}

	participant, err := h.service.Get(c.Request.Context(), giveawayID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrParticipantNotFound) {
			middleware.SendError(c, apperrors.New(apperrors.ErrCodeParticipantNotFound, "You are not registered for this giveaway"))
			return
		}
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to get participant"))
		return
	}

	c.JSON(http.StatusOK, participantResponse{Success: true, Participant: participant})
}

func (h *ParticipantHandler) respondHistory(c *gin.Context, userID int64) {
	record, participations, err := h.service.History(c.Request.Context(), userID, historyLimit)
	if err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to get participation history"))
		return
	}

	c.JSON(http.StatusOK, historyResponse{
		Success:        true,
		UserID:         userID,
		Record:         record,
		Participations: participations,
	})
}

func pathInt64(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		middleware.SendError(c, apperrors.NewValidationError(name, "must be an integer"))
		return 0, false
	}
	return value, true
}
