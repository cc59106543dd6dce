package api

import (
	"strconv"
	"strings"

	"jds/internal/entity"
)

// resolveEntity finds a type by numeric id, registered name, "module.Name"
// of a declaration, or a case-insensitive name matching exactly one type.
func (s *Service) resolveEntity(ref string) (entity.Descriptor, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return entity.Descriptor{}, false
	}
	types := s.Types()
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return types.Lookup(id)
	}
	if d, ok := types.ByName(ref); ok {
		return d, true
	}
	for _, decl := range s.declarations() {
		if strings.EqualFold(decl.FQN(), ref) {
			return types.Lookup(decl.ID())
		}
	}

	var found entity.Descriptor
	n := 0
	for _, d := range types.All() {
		if strings.EqualFold(d.Name, ref) {
			found = d
			n++
		}
	}
	return found, n == 1
}

// moduleOf returns the declaring module of a DSL type, empty for types
// registered in code.
func (s *Service) moduleOf(id int64) string {
	for _, decl := range s.declarations() {
		if decl.ID() == id {
			return decl.Module
		}
	}
	return ""
}
