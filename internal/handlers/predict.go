package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/next-action-service/internal/models"
	"github.com/PratikDhanave/next-action-service/internal/prediction"
)

// RegisterPredictRoutes registers the read path.
//
// POST /predict_next_action (alias /predict)
//   - 200 with the ranked sequences
//   - 404 when the user never did anything after current_action
func RegisterPredictRoutes(r gin.IRoutes, p Predictor) {
	h := func(c *gin.Context) {
		var req models.PredictRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON payload")
			return
		}

		pred, err := p.Predict(c.Request.Context(), prediction.Input{
			CurrentAction: req.CurrentAction,
			UserID:        req.UserID,
			Limit:         req.Limit,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pred)
	}

	r.POST("/predict_next_action", h)
	r.POST("/predict", h)
}
