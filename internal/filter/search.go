package filter

import (
	"strings"

	"github.com/afairgiant/medikeep/internal/record"
)

// searchMatch is the default search: a lowercase substring test against every
// search field, then against every string element of the tags array.
// term must already be trimmed and lowercased.
func searchMatch(r record.Record, term string, fields []record.Field, tags record.Field) bool {
	for _, f := range fields {
		v, ok := f.Get(r)
		if !ok {
			continue
		}
		s, ok := record.String(v)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}

	v, ok := tags.Get(r)
	if !ok {
		return false
	}
	elems, ok := record.Strings(v)
	if !ok {
		return false
	}
	for _, tag := range elems {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}
