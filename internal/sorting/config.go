package sorting

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/afairgiant/medikeep/internal/record"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc" or "desc" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q (want asc or desc)", s)
	}
}

// Toggle returns the opposite direction.
func (d Direction) Toggle() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// sign is +1 for Asc and -1 for Desc. Anything other than Desc is ascending.
func (d Direction) sign() int {
	if d == Desc {
		return -1
	}
	return 1
}

// SortType selects the comparator for a field.
type SortType string

const (
	TypeString   SortType = "string"
	TypeDate     SortType = "date"
	TypeNumber   SortType = "number"
	TypeBoolean  SortType = "boolean"
	TypeStatus   SortType = "status"
	TypeSeverity SortType = "severity"
	TypeCustom   SortType = "custom"
)

// Known reports whether t is a recognized sort type.
func (t SortType) Known() bool {
	switch t {
	case TypeString, TypeDate, TypeNumber, TypeBoolean, TypeStatus, TypeSeverity, TypeCustom:
		return true
	}
	return false
}

// CompareFunc orders two records for a custom sort field. It receives the
// requested direction and the caller's additional data; its result is used
// without further adjustment. A panicking comparator is not recovered.
type CompareFunc func(a, b record.Record, dir Direction, additional any) int

// Option is one selectable sort field.
type Option struct {
	Value string
	Label string

	// Order is the direction used when this field is first selected.
	// Empty means the config default.
	Order Direction
}

// Config describes how to sort one record collection.
type Config struct {
	DefaultSortBy    string
	DefaultSortOrder Direction

	SortOptions []Option

	// SortTypes maps a field to its comparator type. Unlisted fields sort
	// as strings.
	SortTypes map[string]SortType

	StatusOrder   map[string]int
	SeverityOrder map[string]int

	CustomSortFunctions map[string]CompareFunc

	// Fields overrides how a sort field is read. Unlisted fields are read
	// with record.F(name).
	Fields map[string]record.Field

	// TrueFirst sorts true before false ascending.
	TrueFirst bool

	// Locale selects the string collation. The zero Tag means English.
	Locale language.Tag

	// Location is used for dates without a zone. Nil means UTC.
	Location *time.Location
}

// State is the current sort field and direction.
type State struct {
	SortBy    string    `json:"sortBy"`
	SortOrder Direction `json:"sortOrder"`
}

// DefaultState returns the configured default sort.
func DefaultState(cfg *Config) State {
	if cfg == nil {
		return State{SortOrder: Asc}
	}
	order := cfg.DefaultSortOrder
	if order != Desc {
		order = Asc
	}
	return State{SortBy: cfg.DefaultSortBy, SortOrder: order}
}

// TypeOf returns the sort type for field.
func (c *Config) TypeOf(field string) SortType {
	if c == nil {
		return TypeString
	}
	if t, ok := c.SortTypes[field]; ok && t.Known() {
		return t
	}
	return TypeString
}

// DirectionFor returns the direction used when field is newly selected:
// the option's Order, then the default order for the default field, then Asc.
func (c *Config) DirectionFor(field string) Direction {
	if c == nil {
		return Asc
	}
	for _, opt := range c.SortOptions {
		if opt.Value == field && opt.Order != "" {
			return opt.Order
		}
	}
	if field == c.DefaultSortBy && c.DefaultSortOrder == Desc {
		return Desc
	}
	return Asc
}

func (c *Config) field(name string) record.Field {
	if f, ok := c.Fields[name]; ok && !f.IsZero() {
		return f
	}
	return record.F(name)
}

func (c *Config) locale() language.Tag {
	if c.Locale == language.Und {
		return language.English
	}
	return c.Locale
}

func (c *Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
