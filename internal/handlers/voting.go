package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civiclab/agora/internal/entity"
	"github.com/civiclab/agora/internal/location"
	"github.com/civiclab/agora/internal/repo"
	"github.com/civiclab/agora/internal/services"
)

type VotingHandler struct {
	votingService *services.Voting
}

func NewVotingHandler(votingService *services.Voting) *VotingHandler {
	return &VotingHandler{votingService: votingService}
}

type ScopeRequest struct {
	Kind      string  `json:"kind" binding:"required,oneof=global country region city geofenced"`
	CountryID string  `json:"country_id"`
	RegionID  string  `json:"region_id"`
	CityID    string  `json:"city_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radius_km"`
}

type QuestionRequest struct {
	Type     string   `json:"type" binding:"required,oneof=single_choice multiple_choice ordering"`
	Text     string   `json:"text" binding:"required"`
	Required bool     `json:"required"`
	Answers  []string `json:"answers" binding:"required,min=1"`
}

type CreatePollRequest struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	Method      string            `json:"method" binding:"required,oneof=single_choice multiple_choice ranking survey"`
	Scope       ScopeRequest      `json:"scope" binding:"required"`
	Options     []string          `json:"options"`
	Questions   []QuestionRequest `json:"questions"`
	StartDate   time.Time         `json:"start_date" binding:"required"`
	EndDate     time.Time         `json:"end_date" binding:"required"`
}

type CastBallotRequest struct {
	Location struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		CountryID string   `json:"country_id"`
		RegionID  string   `json:"region_id"`
		CityID    string   `json:"city_id"`
	} `json:"location"`
	Choices []int64                         `json:"choices"`
	Ranks   map[int64]int                   `json:"ranks"`
	Answers map[int64]entity.QuestionAnswer `json:"answers"`
}

type ExtendPollRequest struct {
	EndDate time.Time `json:"end_date" binding:"required"`
}

func (v *VotingHandler) CreatePoll(c *gin.Context) {
	var req CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	poll := entity.Poll{
		Title:       req.Title,
		Description: req.Description,
		CreatorID:   userID,
		Method:      entity.VotingMethod(req.Method),
		Scope: entity.LocationScope{
			Kind:      entity.ScopeKind(req.Scope.Kind),
			CountryID: req.Scope.CountryID,
			RegionID:  req.Scope.RegionID,
			CityID:    req.Scope.CityID,
			Center:    entity.Coordinate{Latitude: req.Scope.Latitude, Longitude: req.Scope.Longitude},
			RadiusKm:  req.Scope.RadiusKm,
		},
		IsActive:  true,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	for _, text := range req.Options {
		poll.Options = append(poll.Options, entity.Option{Text: text})
	}
	for _, q := range req.Questions {
		question := entity.Question{
			Type:     entity.QuestionType(q.Type),
			Text:     q.Text,
			Required: q.Required,
		}
		for _, a := range q.Answers {
			question.Answers = append(question.Answers, entity.Option{Text: a})
		}
		poll.Questions = append(poll.Questions, question)
	}

	pollID, err := v.votingService.CreatePoll(c.Request.Context(), poll)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"poll_id": pollID})
}

func (v *VotingHandler) GetPollByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	poll, err := v.votingService.GetPollByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, poll)
}

func (v *VotingHandler) GetPolls(c *gin.Context) {
	polls, err := v.votingService.GetPolls(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, polls)
}

func (v *VotingHandler) CastBallot(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	var req CastBallotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	loc := location.Input{
		CountryID: req.Location.CountryID,
		RegionID:  req.Location.RegionID,
		CityID:    req.Location.CityID,
	}
	if req.Location.Latitude != nil && req.Location.Longitude != nil {
		loc.Coordinate = &entity.Coordinate{
			Latitude:  *req.Location.Latitude,
			Longitude: *req.Location.Longitude,
		}
	}

	payload := entity.BallotPayload{
		Choices: req.Choices,
		Ranks:   req.Ranks,
		Answers: req.Answers,
	}

	ballot, err := v.votingService.CastBallot(c.Request.Context(), pollID, userID, loc, payload)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ballot_id": ballot.ID, "submitted_at": ballot.SubmittedAt})
}

func (v *VotingHandler) GetResults(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	results, err := v.votingService.Results(c.Request.Context(), pollID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (v *VotingHandler) ExtendPoll(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	var req ExtendPollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	if err := v.votingService.ExtendPoll(c.Request.Context(), pollID, userID, req.EndDate); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (v *VotingHandler) DeactivatePoll(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	if err := v.votingService.DeactivatePoll(c.Request.Context(), pollID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (v *VotingHandler) GetLogs(c *gin.Context) {
	logs, err := v.votingService.GetLogs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func userIDFromContext(c *gin.Context) (int64, bool) {
	userIDValue, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}

	userID, ok := userIDValue.(int64)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user id in context"})
		return 0, false
	}

	return userID, true
}

// respondError maps the rejection kinds to HTTP statuses. Every rejection
// carries the reason; nothing is retried on the voter's behalf.
func respondError(c *gin.Context, err error) {
	var qerr *services.QuestionError
	if errors.As(err, &qerr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       qerr.Err.Error(),
			"question_id": qerr.QuestionID,
		})
		return
	}

	switch {
	case errors.Is(err, repo.ErrPollNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "poll not found"})
	case errors.Is(err, services.ErrNotEligible), errors.Is(err, services.ErrNotPollOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": unwrapMessage(err)})
	case errors.Is(err, services.ErrAlreadyVoted), errors.Is(err, services.ErrPollClosed):
		c.JSON(http.StatusConflict, gin.H{"error": unwrapMessage(err)})
	case errors.Is(err, services.ErrInvalidChoice),
		errors.Is(err, services.ErrInvalidRanking),
		errors.Is(err, services.ErrMissingRequiredAnswer),
		errors.Is(err, entity.ErrEndDateNotExtended):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": unwrapMessage(err)})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": unwrapMessage(err)})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// unwrapMessage strips the "Voting.X:" operation prefix for client output.
func unwrapMessage(err error) string {
	for i := 0; i < 8; i++ {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err.Error()
		}
		err = inner
	}
	return err.Error()
}
