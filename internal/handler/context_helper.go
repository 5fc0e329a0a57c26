package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-console/internal/middleware"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/service"
	"github.com/noah-isme/sma-adp-console/pkg/apiclient"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func accessTokenFromContext(c *gin.Context) string {
	return c.GetString(middleware.ContextTokenKey)
}

func sessionFromContext(c *gin.Context) (models.SessionContext, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.SessionContext{}, appErrors.ErrUnauthorized
	}
	return service.SessionFromClaims(claims, accessTokenFromContext(c)), nil
}

// upstreamContext carries the caller's bearer token to the school backend.
func upstreamContext(c *gin.Context) context.Context {
	return apiclient.WithToken(c.Request.Context(), accessTokenFromContext(c))
}

func cellFromParams(c *gin.Context) (models.Day, int, error) {
	day, err := models.ParseDay(c.Param("day"))
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil || slot < 0 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "slot must be a non-negative row index")
	}
	return day, slot, nil
}
