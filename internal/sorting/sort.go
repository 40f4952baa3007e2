package sorting

import (
	"bytes"
	"cmp"
	"slices"

	"golang.org/x/text/collate"

	"github.com/afairgiant/medikeep/internal/record"
)

// decorated pairs a record with its input position and precomputed key.
type decorated struct {
	rec   record.Record
	index int

	// valid is false for missing or unparseable dates and numbers.
	valid bool
	num   float64
	str   []byte
}

// Apply returns records sorted by field in direction dir.
//
// The result is a new slice; records themselves are neither copied nor
// mutated. An empty field returns the records in input order. additional is
// passed to custom comparators.
func Apply(records []record.Record, field string, dir Direction, cfg *Config, additional any) []record.Record {
	out := make([]record.Record, 0, len(records))
	if field == "" || len(records) < 2 {
		return append(out, records...)
	}
	if cfg == nil {
		cfg = &Config{}
	}

	typ := cfg.TypeOf(field)
	if typ == TypeCustom {
		if fn := cfg.CustomSortFunctions[field]; fn != nil {
			return applyCustom(out, records, dir, fn, additional)
		}
		typ = TypeString
	}

	items := decorate(records, field, typ, cfg)
	sign := dir.sign()

	slices.SortFunc(items, func(a, b decorated) int {
		if a.valid != b.valid {
			if a.valid {
				return -1
			}
			return 1
		}
		if a.valid {
			var c int
			if typ == TypeString {
				c = bytes.Compare(a.str, b.str)
			} else {
				c = cmp.Compare(a.num, b.num)
			}
			if c != 0 {
				return c * sign
			}
		}
		return cmp.Compare(a.index, b.index)
	})

	for _, it := range items {
		out = append(out, it.rec)
	}
	return out
}

func applyCustom(out, records []record.Record, dir Direction, fn CompareFunc, additional any) []record.Record {
	items := make([]decorated, len(records))
	for i, r := range records {
		items[i] = decorated{rec: r, index: i}
	}
	slices.SortFunc(items, func(a, b decorated) int {
		if c := fn(a.rec, b.rec, dir, additional); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})
	for _, it := range items {
		out = append(out, it.rec)
	}
	return out
}

// decorate computes one key per record.
func decorate(records []record.Record, field string, typ SortType, cfg *Config) []decorated {
	f := cfg.field(field)
	items := make([]decorated, len(records))

	var (
		col *collate.Collator
		buf collate.Buffer
	)
	if typ == TypeString {
		col = collate.New(cfg.locale(), collate.IgnoreCase)
	}

	for i, r := range records {
		it := decorated{rec: r, index: i, valid: true}
		v, present := f.Get(r)

		switch typ {
		case TypeDate:
			t, ok := record.Time(v, cfg.location())
			it.valid = present && ok
			if it.valid {
				it.num = float64(t.UnixMicro())
			}
		case TypeNumber:
			n, ok := record.Number(v)
			it.valid = present && ok
			it.num = n
		case TypeBoolean:
			truthy := record.Truthy(v)
			if truthy != cfg.TrueFirst {
				it.num = 1
			}
		case TypeStatus:
			it.num = float64(rank(cfg.StatusOrder, v))
		case TypeSeverity:
			it.num = float64(rank(cfg.SeverityOrder, v))
		default:
			s, _ := record.String(v)
			// The returned key stays valid until buf is reset.
			it.str = col.KeyFromString(&buf, s)
		}
		items[i] = it
	}
	return items
}

func rank(order map[string]int, v any) int {
	s, ok := record.String(v)
	if !ok {
		return 0
	}
	return order[s]
}
