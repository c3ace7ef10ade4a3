package response

import (
	"net/url"
	"reflect"
	"strconv"
)

// DefaultLimit is the page size when none is configured.
const DefaultLimit = 100

// Page is an offset/limit window over a list result.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads the window from the query. Missing, non-numeric or
// negative values fall back to def.
func ParsePage(values url.Values, limitKey, offsetKey string, def Page) Page {
	p := def
	if n, ok := nonNegative(values.Get(limitKey)); ok {
		p.Limit = n
	}
	if n, ok := nonNegative(values.Get(offsetKey)); ok {
		p.Offset = n
	}
	return p
}

func nonNegative(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Paginate returns body[offset:offset+limit] clamped to the length of body
// when body is a slice. Any other value is returned unchanged.
func Paginate(body any, p Page) any {
	v := reflect.ValueOf(body)
	if v.Kind() != reflect.Slice {
		return body
	}
	n := v.Len()
	start := min(max(p.Offset, 0), n)
	end := min(start+max(p.Limit, 0), n)
	return v.Slice(start, end).Interface()
}
