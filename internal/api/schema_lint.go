package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jds/internal/dsl"
)

// GET /api/admin/lint reports problems of the loaded declarations against
// the running types without changing anything.
func AdminLintHandler(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		issues := dsl.Lint(s.declarations(), s.Types())
		if issues == nil {
			issues = []dsl.Issue{}
		}
		writeJSON(c, http.StatusOK, gin.H{"ok": len(issues) == 0, "issues": issues})
	}
}
