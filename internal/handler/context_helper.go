package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/family-console-api/internal/middleware"
	"github.com/noah-isme/family-console-api/internal/models"
	appErrors "github.com/noah-isme/family-console-api/pkg/errors"
)

const defaultPageSize = 20

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentUser(c)
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}

// pageQuery reads page and limit, falling back to 1 and the default size.
func pageQuery(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 {
		size = defaultPageSize
	}
	return page, size
}

// boolQuery returns nil unless key is literally true or false.
func boolQuery(c *gin.Context, key string) *bool {
	switch strings.ToLower(c.Query(key)) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}
