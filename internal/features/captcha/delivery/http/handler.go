package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/azatarm-prog/telegive-participant/internal/common/errors"
	"github.com/azatarm-prog/telegive-participant/internal/common/middleware"
	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/models"
	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/service"
	participantmodels "github.com/azatarm-prog/telegive-participant/internal/features/participant/models"
	participantservice "github.com/azatarm-prog/telegive-participant/internal/features/participant/service"
)

type CaptchaHandler struct {
	service      *service.Service
	participants *participantservice.Service
}

func NewCaptchaHandler(service *service.Service, participants *participantservice.Service) *CaptchaHandler {
	return &CaptchaHandler{
		service:      service,
		participants: participants,
	}
}

func (h *CaptchaHandler) RegisterRoutes(router *gin.RouterGroup) {
	participants := router.Group("/participants")
	{
		participants.POST("/generate-captcha", h.generateCaptcha)
		participants.POST("/validate-captcha", h.validateCaptcha)
		participants.GET("/captcha-status/:user_id", h.captchaStatus)
	}
}

// RegisterPublicRoutes exposes the read-only status endpoint to mini-app
// users authenticated via Telegram init data.
func (h *CaptchaHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.GET("/participants/me/captcha-status", h.myCaptchaStatus)
}

type generateCaptchaRequest struct {
	UserID     int64 `json:"user_id" binding:"required"`
	GiveawayID int64 `json:"giveaway_id" binding:"required"`
}

type captchaSessionResponse struct {
	Success bool                   `json:"success"`
	Session *models.CaptchaSession `json:"captcha_session"`
}

// @Summary Generate a captcha session
// @Description Creates a fresh captcha session for the user and giveaway, replacing any previous active one
// @Tags captcha
// @Accept json
// @Produce json
// @Security ServiceToken
// @Param input body generateCaptchaRequest true "User and giveaway"
// @Success 201 {object} captchaSessionResponse
// @Failure 400 {object} middleware.ErrorResponse "Validation error"
// @Failure 409 {object} middleware.ErrorResponse "User already verified"
// @Router /participants/generate-captcha [post]
func (h *CaptchaHandler) generateCaptcha(c *gin.Context) {
	var input generateCaptchaRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Invalid request body"))
		return
	}

	session, err := h.service.StartSession(c.Request.Context(), input.UserID, input.GiveawayID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyVerified) {
			middleware.SendError(c, apperrors.New(apperrors.ErrCodeAlreadyVerified, "User has already completed captcha"))
			return
		}
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to create captcha session"))
		return
	}

	c.JSON(http.StatusCreated, captchaSessionResponse{Success: true, Session: session})
}

// Display fields are capped at the column width so an oversized value is
// rejected as a validation error instead of surfacing as a database error.
type validateCaptchaRequest struct {
	SessionToken string `json:"session_token" binding:"required"`
	Answer       string `json:"answer" binding:"required"`
	Username     string `json:"username" binding:"max=100"`
	FirstName    string `json:"first_name" binding:"max=100"`
	LastName     string `json:"last_name" binding:"max=100"`
}

type validateCaptchaResponse struct {
	Success           bool                                  `json:"success"`
	Correct           bool                                  `json:"correct"`
	AttemptsRemaining int                                   `json:"attempts_remaining"`
	NewQuestion       string                                `json:"new_question,omitempty"`
	Registration      *participantmodels.RegistrationResult `json:"registration,omitempty"`
}

// @Summary Validate a captcha answer
// @Description Checks the answer against the session. A correct answer verifies the user globally and completes the pending registration; a wrong one returns a replacement question while attempts remain
// @Tags captcha
// @Accept json
// @Produce json
// @Security ServiceToken
// @Param input body validateCaptchaRequest true "Session token and answer"
// @Success 200 {object} validateCaptchaResponse
// @Failure 404 {object} middleware.ErrorResponse "Unknown session token"
// @Failure 410 {object} middleware.ErrorResponse "Session expired or attempts exhausted"
// @Router /participants/validate-captcha [post]
func (h *CaptchaHandler) validateCaptcha(c *gin.Context) {
	var input validateCaptchaRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Invalid request body"))
		return
	}

	result, err := h.service.SubmitAnswer(c.Request.Context(), input.SessionToken, input.Answer)
	if err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to validate captcha"))
		return
	}

	switch result.Outcome {
	case models.OutcomeNotFound:
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeCaptchaSessionNotFound, "Captcha session not found"))
		return
	case models.OutcomeExpired:
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeCaptchaExpired, "Captcha session expired"))
		return
	case models.OutcomeAttemptsExhausted:
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeCaptchaAttemptsExceeded, "Maximum captcha attempts exceeded"))
		return
	case models.OutcomeIncorrect:
		c.JSON(http.StatusOK, validateCaptchaResponse{
			Success:           true,
			Correct:           false,
			AttemptsRemaining: result.AttemptsRemaining,
			NewQuestion:       result.Question,
		})
		return
	}

	// Correct: finish the registration that triggered the captcha.
	registration, err := h.participants.Register(c.Request.Context(), participantservice.RegisterRequest{
		GiveawayID: result.GiveawayID,
		UserID:     result.UserID,
		Meta: participantmodels.DisplayMeta{
			Username:  input.Username,
			FirstName: input.FirstName,
			LastName:  input.LastName,
		},
	})
	if err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Captcha passed but registration failed"))
		return
	}

	c.JSON(http.StatusOK, validateCaptchaResponse{
		Success:      true,
		Correct:      true,
		Registration: registration,
	})
}

type captchaStatusResponse struct {
	Success bool                      `json:"success"`
	Record  *models.UserCaptchaRecord `json:"record"`
}

// @Summary Get a user's verification status
// @Description Returns the global verification ledger entry for the user; users never seen before read as unverified zeros
// @Tags captcha
// @Produce json
// @Security ServiceToken
// @Param user_id path int true "Telegram user id"
// @Success 200 {object} captchaStatusResponse
// @Router /participants/captcha-status/{user_id} [get]
func (h *CaptchaHandler) captchaStatus(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		middleware.SendError(c, apperrors.NewValidationError("user_id", "must be an integer"))
		return
	}

	record, err := h.service.Status(c.Request.Context(), userID)
	if err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to get captcha status"))
		return
	}

	c.JSON(http.StatusOK, captchaStatusResponse{Success: true, Record: record})
}

func (h *CaptchaHandler) myCaptchaStatus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeAuthRequired, "Authentication required"))
		return
	}

	record, err := h.service.Status(c.Request.Context(), userID)
	if err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to get captcha status"))
		return
	}

	c.JSON(http.StatusOK, captchaStatusResponse{Success: true, Record: record})
}
