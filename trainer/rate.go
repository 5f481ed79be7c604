package trainer

import (
	"fmt"
	"strings"

	"github.com/reglet-dev/reglet-compose/domain/entities"
)

// ParseRate interprets a schedule parameter such as validation_rate or
// backup_rate. It returns ok=false when the schedule is switched off.
//
// Accepted values: nil or "none" (off), an integer (that index only), a
// filter string ("::5", "10:100:10,200"), or a list mixing both.
func ParseRate(v any) (filter entities.IndexFilter, ok bool, err error) {
	switch r := v.(type) {
	case nil:
		return nil, false, nil
	case string:
		if strings.EqualFold(strings.TrimSpace(r), "none") {
			return nil, false, nil
		}
		f, err := entities.ParseFilter(r)
		if err != nil {
			return nil, false, err
		}
		return f, true, nil
	case int:
		return entities.IndexFilter{entities.At(r)}, true, nil
	case int64:
		return entities.IndexFilter{entities.At(int(r))}, true, nil
	case float64:
		if r != float64(int(r)) {
			return nil, false, fmt.Errorf("rate %v is not an integer", r)
		}
		return entities.IndexFilter{entities.At(int(r))}, true, nil
	case entities.IndexRange:
		return entities.IndexFilter{r}, true, nil
	case entities.IndexFilter:
		return r, true, nil
	case []any:
		var out entities.IndexFilter
		for _, item := range r {
			f, on, err := ParseRate(item)
			if err != nil {
				return nil, false, err
			}
			if on {
				out = append(out, f...)
			}
		}
		if len(out) == 0 {
			return nil, false, nil
		}
		return out, true, nil
	default:
		return nil, false, fmt.Errorf("unsupported rate %v (%T)", v, v)
	}
}
