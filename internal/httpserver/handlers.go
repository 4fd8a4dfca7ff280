package httpserver

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shopcore/internal/domain"
)

// pathUUID reads a UUID path parameter, writing a 400 when it is malformed.
func pathUUID(c *gin.Context, name string) (string, bool) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		writeBindError(c, domain.NewValidationError(name, "must be a UUID"))
		return "", false
	}
	return id.String(), true
}

// paging reads skip and limit; the services clamp the limit.
func paging(c *gin.Context) (int, int, bool) {
	skip, err := queryInt(c, "skip")
	if err != nil || skip < 0 {
		writeBindError(c, domain.NewValidationError("skip", "must be a non-negative integer"))
		return 0, 0, false
	}
	limit, err := queryInt(c, "limit")
	if err != nil || limit < 0 {
		writeBindError(c, domain.NewValidationError("limit", "must be a non-negative integer"))
		return 0, 0, false
	}
	return skip, limit, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
