package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/next-action-service/internal/apperr"
	"github.com/PratikDhanave/next-action-service/internal/logging"
	"github.com/PratikDhanave/next-action-service/internal/models"
	"github.com/PratikDhanave/next-action-service/internal/prediction"
	"github.com/PratikDhanave/next-action-service/internal/tracking"
)

// Tracker records one action.
type Tracker interface {
	Track(ctx context.Context, in tracking.Input) (models.TrackResult, error)
}

// Predictor ranks next actions.
type Predictor interface {
	Predict(ctx context.Context, in prediction.Input) (models.Prediction, error)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return apperr.CodeStorage
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Ctx(c.Request.Context()).Error().Err(err).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.JSON(status, models.ErrorResponse{Error: err.Error(), Code: codeFor(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg, Code: apperr.CodeValidation})
}
