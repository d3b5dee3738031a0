package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/player"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps err onto a status by its sentinel.
func RespondServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, nberrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, nberrors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, nberrors.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, player.ErrClosed):
		status = http.StatusGone
	case errors.Is(err, nberrors.ErrNetwork), errors.Is(err, nberrors.ErrEmptyGeneration):
		status = http.StatusBadGateway
	}
	code := nberrors.Code(err)
	if errors.Is(err, player.ErrClosed) {
		code = "closed"
	}
	RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
