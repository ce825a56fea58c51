package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/newsforge/newsforge-backend/internal/http/response"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
)

// respondServiceError maps domain sentinels onto HTTP statuses so handlers
// stay free of status-code case analysis.
func respondServiceError(c *gin.Context, code string, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.RespondError(c, http.StatusNotFound, code, err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		response.RespondError(c, http.StatusBadRequest, code, err)
	case errors.Is(err, pkgerrors.ErrTenantMissing):
		response.RespondError(c, http.StatusUnauthorized, code, err)
	case errors.Is(err, pkgerrors.ErrNoPlan):
		response.RespondError(c, http.StatusUnprocessableEntity, code, err)
	default:
		response.RespondError(c, http.StatusInternalServerError, code, err)
	}
}
