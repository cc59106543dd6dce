package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"jds/internal/entity"
	"jds/internal/field"
	"jds/internal/reference"
)

type metaEntityListItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Module      string `json:"module,omitempty"`
	Version     int    `json:"version"`
	Parent      int64  `json:"parent,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Service) listItem(d entity.Descriptor) metaEntityListItem {
	return metaEntityListItem{
		ID:          d.ID,
		Name:        d.Name,
		Module:      s.moduleOf(d.ID),
		Version:     d.Version,
		Parent:      d.Parent,
		Description: d.Description,
	}
}

// GET /api/meta
func MetaListHandler(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		all := s.Types().All()
		out := make([]metaEntityListItem, 0, len(all))
		for _, d := range all {
			out = append(out, s.listItem(d))
		}
		writeJSON(c, http.StatusOK, out)
	}
}

type metaField struct {
	field.Field
	Enum      []string `json:"enum,omitempty"`
	Child     int64    `json:"child,omitempty"`
	ChildName string   `json:"childName,omitempty"`
}

type metaEntity struct {
	metaEntityListItem
	Fields      []metaField `json:"fields"`
	Descendants []int64     `json:"descendants,omitempty"`
}

// GET /api/meta/:entity
func MetaEntityHandler(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, ok := s.resolveEntity(c.Param("entity"))
		if !ok {
			errorJSON(c, http.StatusNotFound, "Entity not found", nil)
			return
		}
		types := s.Types()
		p, err := types.New(d.ID)
		if err != nil {
			errorJSON(c, statusFor(err), "Cannot instantiate entity", err)
			return
		}
		e := p.Base()

		fields := make([]metaField, 0, len(e.FieldIDs()))
		for _, id := range e.FieldIDs() {
			f, _ := e.FieldOf(id)
			mf := metaField{Field: f}
			if en, ok := types.Fields().Enum(id); ok {
				mf.Enum = en.Values
			}
			if child, ok := e.ChildType(id); ok {
				mf.Child = child
				if cd, ok := types.Lookup(child); ok {
					mf.ChildName = cd.Name
				}
			}
			fields = append(fields, mf)
		}
		var desc []int64
		for _, id := range types.Descendants(d.ID) {
			if id != d.ID {
				desc = append(desc, id)
			}
		}
		writeJSON(c, http.StatusOK, metaEntity{metaEntityListItem: s.listItem(d), Fields: fields, Descendants: desc})
	}
}

// GET /api/meta/fields
func MetaFieldsHandler(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeJSON(c, http.StatusOK, s.Types().Fields().AllFields())
	}
}

type metaEnum struct {
	field.Enum
	Items []reference.EnumItem `json:"items,omitempty"`
}

// GET /api/meta/enums/:field accepts a field id or name. Catalog-backed
// enums also list their item labels.
func MetaEnumHandler(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := strings.TrimSpace(c.Param("field"))
		reg := s.Types().Fields()

		var (
			en    field.Enum
			found bool
		)
		if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
			en, found = reg.Enum(id)
		} else {
			for _, e := range reg.AllEnums() {
				if strings.EqualFold(e.Field.Name, ref) {
					en, found = e, true
					break
				}
			}
		}
		if !found {
			errorJSON(c, http.StatusNotFound, "Enum not found", nil)
			return
		}

		out := metaEnum{Enum: en}
		s.mu.RLock()
		for _, dir := range s.catalog {
			if dir.Field == en.Field.ID {
				out.Items = dir.Items
				break
			}
		}
		s.mu.RUnlock()
		writeJSON(c, http.StatusOK, out)
	}
}
