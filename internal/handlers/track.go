package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/next-action-service/internal/apperr"
	"github.com/PratikDhanave/next-action-service/internal/models"
	"github.com/PratikDhanave/next-action-service/internal/prediction"
	"github.com/PratikDhanave/next-action-service/internal/tracking"
)

// RegisterTrackRoutes registers the track-then-predict endpoint.
//
// POST /track_action (alias /track)
//   - stores the action and the transition from the user's previous action
//   - then predicts what follows the action just tracked
//   - 200 with "predictions": null when nothing has followed this action yet
//
// The track has already committed when the prediction runs, so a not-found
// prediction is reported in "prediction_error" with status 200 rather than as
// a 404. A client retrying on 404 would replay a stored event. Any other
// prediction failure is still an error response.
func RegisterTrackRoutes(r gin.IRoutes, t Tracker, p Predictor) {
	h := func(c *gin.Context) {
		var req models.TrackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON payload")
			return
		}

		in := tracking.Input{
			UserID:     req.UserID,
			ActionName: req.ActionName,
			Metadata:   req.Metadata,
		}
		if strings.TrimSpace(req.Timestamp) != "" {
			ts, err := models.ParseTimestamp(req.Timestamp)
			if err != nil {
				badRequest(c, "timestamp must be ISO-8601")
				return
			}
			in.Timestamp = ts
		}

		ctx := c.Request.Context()
		res, err := t.Track(ctx, in)
		if err != nil {
			respondError(c, err)
			return
		}

		resp := models.TrackResponse{Tracking: res}
		pred, err := p.Predict(ctx, prediction.Input{
			CurrentAction: req.ActionName,
			UserID:        req.UserID,
		})
		switch {
		case err == nil:
			resp.Predictions = &pred
		case apperr.IsKind(err, apperr.KindNotFound):
			resp.PredictionError = err.Error()
		default:
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}

	r.POST("/track_action", h)
	r.POST("/track", h)
}
