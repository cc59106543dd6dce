package api

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"jds/internal/embedded"
)

type SortKey struct {
	Field string
	Desc  bool
}

type ListParams struct {
	Limit  int
	Offset int
	Sort   []SortKey
	// Latest keeps only the highest edit version per uuid.
	Latest bool
	// Nested includes entities that live under an aggregate root.
	Nested bool
}

func first(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

func flag(v string, fallback bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return fallback
}

func parseListParams(q url.Values) ListParams {
	lp := ListParams{Limit: 50, Latest: true}
	if n, err := strconv.Atoi(first(q, "_limit", "limit")); err == nil && n >= 0 && n <= 1000 {
		lp.Limit = n
	}
	if n, err := strconv.Atoi(first(q, "_offset", "offset")); err == nil && n >= 0 {
		lp.Offset = n
	}
	for _, p := range strings.Split(first(q, "_sort", "sort"), ",") {
		p = strings.TrimSpace(p)
		desc := strings.HasPrefix(p, "-")
		p = strings.TrimLeft(p, "+-")
		if p != "" {
			lp.Sort = append(lp.Sort, SortKey{Field: p, Desc: desc})
		}
	}
	lp.Latest = flag(first(q, "latest"), lp.Latest)
	lp.Nested = flag(first(q, "nested"), lp.Nested)
	return lp
}

// compareOverview orders by one overview attribute; unknown keys compare
// equal.
func compareOverview(a, b embedded.Overview, key string) int {
	switch key {
	case "uuid", "id":
		return strings.Compare(a.UUID, b.UUID)
	case "editVersion", "edit_version":
		return a.EditVersion - b.EditVersion
	case "entityId", "entity_id":
		switch {
		case a.EntityID < b.EntityID:
			return -1
		case a.EntityID > b.EntityID:
			return 1
		}
	}
	return 0
}

func sortObjects(objs []embedded.Object, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(objs, func(i, j int) bool {
		for _, k := range keys {
			c := compareOverview(objs[i].Overview, objs[j].Overview, k.Field)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func page[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
