package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"jds/internal/embedded"
	"jds/internal/engine"
	"jds/internal/entity"
	"jds/internal/store"
)

// decodeObjects accepts one embedded object or an array of them.
func decodeObjects(body []byte) ([]embedded.Object, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var out []embedded.Object
		err := json.Unmarshal(body, &out)
		return out, err
	}
	var o embedded.Object
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, err
	}
	return []embedded.Object{o}, nil
}

func exportAll(found []entity.Persistable) []embedded.Object {
	out := make([]embedded.Object, 0, len(found))
	for _, p := range found {
		out = append(out, p.Base().Export())
	}
	return out
}

// POST /api/entities
func SaveHandler(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Cannot read body", err)
			return
		}
		objs, err := decodeObjects(body)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Invalid JSON", err)
			return
		}
		if len(objs) == 0 {
			errorJSON(c, http.StatusBadRequest, "Nothing to save", nil)
			return
		}

		types := s.Types()
		var errs []FieldError
		for i, o := range objs {
			errs = append(errs, ValidateObject(types, o, fmt.Sprintf("[%d]", i))...)
		}
		if len(errs) > 0 {
			writeJSON(c, http.StatusBadRequest, gin.H{"errors": errs})
			return
		}

		roots := make([]entity.Persistable, 0, len(objs))
		for _, o := range objs {
			p, err := entity.Import(types, o)
			if err != nil {
				errorJSON(c, statusFor(err), "Cannot import object", err)
				return
			}
			roots = append(roots, p)
		}
		opts := engine.SaveOptions{Standardize: queryBool(c, "standardize", false)}
		if err := s.engine.Save(c.Request.Context(), opts, roots...); err != nil {
			s.log.WithError(err).Warn("save failed")
			errorJSON(c, statusFor(err), "Save failed", err)
			return
		}
		writeJSON(c, http.StatusCreated, exportAll(roots))
	}
}

// GET /api/entities/:entity
func ListHandler(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, ok := s.resolveEntity(c.Param("entity"))
		if !ok {
			errorJSON(c, http.StatusNotFound, "Entity not found", nil)
			return
		}
		lp := parseListParams(c.Request.URL.Query())
		found, err := s.engine.Load(c.Request.Context(), engine.Filter{
			Types:         []int64{d.ID},
			LatestOnly:    lp.Latest,
			IncludeNested: lp.Nested,
		})
		if err != nil {
			errorJSON(c, statusFor(err), "Load failed", err)
			return
		}
		objs := exportAll(found)
		sortObjects(objs, lp.Sort)
		c.Header("X-Total-Count", strconv.Itoa(len(objs)))
		writeJSON(c, http.StatusOK, page(objs, lp.Offset, lp.Limit))
	}
}

// revisions loads every stored revision of uuid under type d, or only
// the latest one.
func (s *Service) revisions(c *gin.Context, d entity.Descriptor, uuid string, latest bool) ([]entity.Persistable, error) {
	return s.engine.Load(c.Request.Context(), engine.Filter{
		Types:      []int64{d.ID},
		UUIDs:      []string{uuid},
		LatestOnly: latest,
	})
}

// GET /api/entities/:entity/:uuid
func GetOneHandler(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, ok := s.resolveEntity(c.Param("entity"))
		if !ok {
			errorJSON(c, http.StatusNotFound, "Entity not found", nil)
			return
		}
		ev, pinned, err := queryInt(c, "editVersion")
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Invalid editVersion", err)
			return
		}
		found, err := s.revisions(c, d, c.Param("uuid"), !pinned)
		if err != nil {
			errorJSON(c, statusFor(err), "Load failed", err)
			return
		}
		for _, p := range found {
			if !pinned || p.Base().Overview.EditVersion == ev {
				writeJSON(c, http.StatusOK, p.Base().Export())
				return
			}
		}
		errorJSON(c, http.StatusNotFound, "Not found", nil)
	}
}

// DELETE /api/entities/:entity/:uuid removes one revision when editVersion
// is given and every revision otherwise, together with the nested entities
// of each removed revision.
func DeleteHandler(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, ok := s.resolveEntity(c.Param("entity"))
		if !ok {
			errorJSON(c, http.StatusNotFound, "Entity not found", nil)
			return
		}
		ev, pinned, err := queryInt(c, "editVersion")
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Invalid editVersion", err)
			return
		}
		found, err := s.revisions(c, d, c.Param("uuid"), false)
		if err != nil {
			errorJSON(c, statusFor(err), "Load failed", err)
			return
		}
		var keys []store.Key
		for _, p := range found {
			if pinned && p.Base().Overview.EditVersion != ev {
				continue
			}
			for e := range p.Base().AllEntities(true) {
				keys = append(keys, e.Overview.Key())
			}
		}
		if len(keys) == 0 {
			errorJSON(c, http.StatusNotFound, "Not found", nil)
			return
		}
		if err := s.engine.Delete(c.Request.Context(), keys...); err != nil {
			errorJSON(c, statusFor(err), "Delete failed", err)
			return
		}
		s.log.WithFields(log.Fields{"uuid": c.Param("uuid"), "revisions": len(keys)}).Info("deleted via api")
		writeJSON(c, http.StatusOK, gin.H{"deleted": len(keys)})
	}
}
