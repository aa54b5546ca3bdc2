package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// getMemberID extracts the member ID from gin context.
func getMemberID(c *gin.Context) uint64 {
	val, exists := c.Get("memberID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// clubIDFromQuery parses the club_id query parameter.
func clubIDFromQuery(c *gin.Context) (uint64, bool) {
	raw := c.Query("club_id")
	if raw == "" {
		return 0, false
	}
	id, errParse := strconv.ParseUint(raw, 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// pathID parses a numeric path parameter.
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param(name), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}
