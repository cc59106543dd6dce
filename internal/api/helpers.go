package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"jds/internal/entity"
	"jds/internal/field"
	"jds/internal/schema"
)

// writeJSON renders v with go-json, which keeps field order and time
// encoding identical to the CLI export.
func writeJSON(c *gin.Context, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode response", "details": err.Error()})
		return
	}
	c.Data(status, "application/json; charset=utf-8", b)
}

func errorJSON(c *gin.Context, status int, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	writeJSON(c, status, body)
}

// statusFor maps engine and registry errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrSchemaSyncRequired):
		return http.StatusServiceUnavailable
	case errors.Is(err, entity.ErrUnregisteredEntityType),
		errors.Is(err, field.ErrIncorrectFieldType),
		errors.Is(err, field.ErrConflictingBinding),
		errors.Is(err, ErrRejected):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func queryBool(c *gin.Context, key string, fallback bool) bool {
	return flag(strings.TrimSpace(c.Query(key)), fallback)
}

// queryInt returns ok=false when key is absent and an error when it is
// present but not a number.
func queryInt(c *gin.Context, key string) (int, bool, error) {
	v, ok := c.GetQuery(key)
	if !ok || strings.TrimSpace(v) == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, true, errors.Errorf("%s must be a number", key)
	}
	return n, true, nil
}
