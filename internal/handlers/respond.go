// Package handlers is the HTTP edge: binding, error translation and
// response shaping. All orchestration decisions live in the service layer.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"videoserver/internal/apperr"
	"videoserver/internal/models"
	"videoserver/internal/storage"
	"videoserver/internal/transcode"
)

// writeError maps the service error taxonomy to HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: verr.Field, Message: verr.Reason})
		return
	}
	var cerr *apperr.ConflictError
	if errors.As(err, &cerr) {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "conflict", Message: cerr.Reason})
		return
	}
	var nferr *apperr.NotFoundError
	if errors.As(err, &nferr) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: nferr.Error()})
		return
	}
	if errors.Is(err, storage.ErrNotExist) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: "stored content is missing"})
		return
	}
	var terr *transcode.Error
	if errors.As(err, &terr) {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "transcode_failed", Message: terr.Error()})
		return
	}
	c.Error(err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal", Message: "internal server error"})
}
