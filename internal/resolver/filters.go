package resolver

import (
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/blockcfg/internal/store"
)

// applyFilters maps argument names onto bq. Unknown names are an error.
func applyFilters(bq *store.BlockQuery, filters map[string]any) error {
	for key, raw := range filters {
		var dst **int64
		switch key {
		case "id":
			dst = &bq.ID
		case "ownerId":
			dst = &bq.OwnerID
		case "fieldId":
			dst = &bq.FieldID
		case "siteId":
			dst = &bq.SiteID
		case "typeId":
			dst = &bq.TypeID
		case "parentId":
			dst = &bq.ParentID
		default:
			return fmt.Errorf("unknown block query argument %q", key)
		}
		id, err := toID(raw)
		if err != nil {
			return fmt.Errorf("block query argument %q: %w", key, err)
		}
		*dst = &id
	}
	return nil
}

func toID(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an id", n)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("unsupported id type %T", v)
	}
}
