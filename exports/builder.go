// Package exports narrows customer export listings by recognized date and
// text fields. Unknown fields are ignored; recognized filters AND-compose.
package exports

import (
	"slices"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

var (
	DateFields = []string{"created_at", "updated_at", "status_changed_at"}
	TextFields = []string{"export_type", "category", "status", "city"}
)

const DefaultOrder = "created_at DESC"

type Option func(*Builder)

// WithLocation sets the zone used for start and end of day.
func WithLocation(loc *time.Location) Option {
	return func(b *Builder) {
		if loc != nil {
			b.loc = loc
		}
	}
}

// WithBase replaces the default base criteria (created_at DESC).
func WithBase(criteria ...repository.SelectCriteria) Option {
	return func(b *Builder) {
		b.base = append([]repository.SelectCriteria(nil), criteria...)
	}
}

type Builder struct {
	loc  *time.Location
	base []repository.SelectCriteria
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		loc:  time.UTC,
		base: []repository.SelectCriteria{repository.OrderBy(DefaultOrder)},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Builder) Location() *time.Location {
	if b == nil || b.loc == nil {
		return time.UTC
	}
	return b.loc
}

// Criteria returns the base criteria followed by one criterion per applied
// filter bound, in parameter order.
func (b *Builder) Criteria(params Params) ([]repository.SelectCriteria, error) {
	if b == nil {
		b = NewBuilder()
	}
	filters, err := b.Filters(params)
	if err != nil {
		return nil, err
	}
	out := make([]repository.SelectCriteria, 0, len(b.base)+len(filters))
	out = append(out, b.base...)
	out = append(out, filters...)
	return out, nil
}

// Filters returns only the filter criteria for params.
func (b *Builder) Filters(params Params) ([]repository.SelectCriteria, error) {
	predicates, err := b.predicates(params)
	if err != nil {
		return nil, err
	}
	out := make([]repository.SelectCriteria, 0, len(predicates))
	for _, p := range predicates {
		out = append(out, p.criteria())
	}
	return out, nil
}

// Apply narrows query by params. The query is returned unchanged when no
// recognized filter applies.
func (b *Builder) Apply(query *bun.SelectQuery, params Params) (*bun.SelectQuery, error) {
	predicates, err := b.predicates(params)
	if err != nil {
		return nil, err
	}
	for _, p := range predicates {
		query = p.apply(query)
	}
	return query, nil
}

type predicate struct {
	column   string
	operator string
	value    any
}

func (p predicate) apply(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("? "+p.operator+" ?", bun.Ident(p.column), p.value)
}

func (p predicate) criteria() repository.SelectCriteria {
	if text, ok := p.value.(string); ok {
		return repository.SelectBy(p.column, p.operator, text)
	}
	return repository.SelectRawProcessor(p.apply)
}

func (b *Builder) predicates(params Params) ([]predicate, error) {
	if b == nil {
		b = NewBuilder()
	}
	var out []predicate
	for _, field := range params.Fields() {
		value, _ := params.Get(field)
		if value == nil || value.empty() {
			continue
		}
		switch {
		case slices.Contains(DateFields, field):
			bounds, err := b.dateBounds(field, value)
			if err != nil {
				return nil, err
			}
			out = append(out, bounds...)
		case slices.Contains(TextFields, field):
			text, ok := value.(Text)
			if !ok {
				return nil, filterBadInput(field, "exports: "+field+" expects a text value")
			}
			out = append(out, predicate{column: field, operator: "=", value: string(text)})
		}
	}
	return out, nil
}

func (b *Builder) dateBounds(field string, value Value) ([]predicate, error) {
	dateRange, ok := value.(DateRange)
	if !ok {
		return nil, filterBadInput(field, "exports: "+field+" expects a date range")
	}
	column := field
	if name := strings.TrimSpace(dateRange.Name); name != "" && slices.Contains(DateFields, name) {
		column = name
	}

	var out []predicate
	if from := strings.TrimSpace(dateRange.From); from != "" {
		day, err := parseDay(from, b.Location())
		if err != nil {
			return nil, filterBadInput(field, "exports: invalid "+field+" from date "+from)
		}
		out = append(out, predicate{column: column, operator: ">=", value: beginningOfDay(day).UTC()})
	}
	if to := strings.TrimSpace(dateRange.To); to != "" {
		day, err := parseDay(to, b.Location())
		if err != nil {
			return nil, filterBadInput(field, "exports: invalid "+field+" to date "+to)
		}
		out = append(out, predicate{column: column, operator: "<=", value: endOfDay(day).UTC()})
	}
	return out, nil
}
