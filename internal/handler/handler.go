// Package handler holds the request helpers shared by the route handlers.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/appointment-api/internal/middleware"
	"github.com/jwalitptl/appointment-api/internal/model"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
	"github.com/jwalitptl/appointment-api/pkg/httputil"
	"github.com/jwalitptl/appointment-api/pkg/validator"
)

// Handler is implemented by every route group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// BindJSON decodes the body and reports binding failures as validation errors.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("%s", validator.Message(err)))
		return false
	}
	return true
}

// ParamUUID parses a path parameter.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// QueryUUID parses an optional query parameter; absent yields uuid.Nil.
func QueryUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// QueryDate parses an optional YYYY-MM-DD query parameter.
func QueryDate(c *gin.Context, name string) (model.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return "", true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("%s: %v", name, err))
		return "", false
	}
	return d, true
}

// Actor returns the caller set by the auth middleware.
func Actor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
	}
	return actor, ok
}
