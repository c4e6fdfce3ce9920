package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devashis/prajna/internal/pkg/errcode"
	appErr "github.com/devashis/prajna/internal/pkg/errors"
	"github.com/devashis/prajna/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case appErr.IsInvalid(err):
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, err.Error())
	case appErr.IsNotFound(err):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case appErr.IsTooMany(err):
		response.Error(c, http.StatusTooManyRequests, errcode.ErrTooMany, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}
