package handler

import (
	"errors"
	"net/http"

	"github.com/Abdullah-608/gigpanda/model"
	"github.com/Abdullah-608/gigpanda/pkg/logger"
	"github.com/Abdullah-608/gigpanda/service"
	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto HTTP statuses with the
// {success:false, message} envelope. Unknown errors are logged and surfaced
// as a generic server error.
func respondError(c *gin.Context, err error) {
	var insufficient *model.InsufficientEscrowError

	status := http.StatusInternalServerError
	message := "Server Error"

	switch {
	case errors.As(err, &insufficient):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	case errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, model.ErrFeedbackRequired),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrNoMilestones),
		errors.Is(err, service.ErrTitleRequired),
		errors.Is(err, service.ErrInvalidRole):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, service.ErrContractNotFound),
		errors.Is(err, model.ErrMilestoneNotFound),
		errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, service.ErrProposalNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrRecipientNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrContractClosed),
		errors.Is(err, model.ErrMilestonesUnpaid),
		errors.Is(err, model.ErrEscrowNotEmpty),
		errors.Is(err, model.ErrNoSubmission),
		errors.Is(err, service.ErrProposalDecided),
		errors.Is(err, service.ErrJobClosed),
		errors.Is(err, service.ErrEmailTaken):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, service.ErrNotPermitted):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		message = err.Error()
	default:
		logger.Error(c.Request.Context(), "unhandled error", "error", err)
	}

	c.JSON(status, gin.H{"success": false, "message": message})
}
