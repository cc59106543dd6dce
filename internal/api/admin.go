package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type reloadReq struct {
	DSLRoot   string `json:"dsl_root"`
	EnumsRoot string `json:"enums_root"`
}

// POST /api/admin/sync
func AdminSyncHandler(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.engine.Resync(c.Request.Context()); err != nil {
			s.log.WithError(err).Error("resync failed")
			errorJSON(c, statusFor(err), "Sync failed", err)
			return
		}
		writeJSON(c, http.StatusOK, gin.H{
			"ok":      true,
			"types":   len(s.Types().All()),
			"reports": len(s.engine.Reports()),
		})
	}
}

// POST /api/admin/reload
func AdminReloadHandler(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reloadReq
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			errorJSON(c, http.StatusBadRequest, "Invalid JSON", err)
			return
		}
		res, err := s.Reload(c.Request.Context(), strings.TrimSpace(req.DSLRoot), strings.TrimSpace(req.EnumsRoot))
		if err != nil {
			body := gin.H{"error": "reload failed", "details": err.Error(), "dslRoot": res.DSLDir, "enumsRoot": res.EnumsDir}
			if len(res.Issues) > 0 {
				body["error"] = "schema has blocking issues"
				body["issues"] = res.Issues
				body["hint"] = "fix DSL and retry"
			}
			writeJSON(c, statusFor(err), body)
			return
		}
		writeJSON(c, http.StatusOK, gin.H{
			"ok":         true,
			"dslRoot":    res.DSLDir,
			"enumsRoot":  res.EnumsDir,
			"entities":   res.Entities,
			"enumGroups": res.EnumGroups,
		})
	}
}
