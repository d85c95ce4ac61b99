package exports

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Value is a single filter value: Text or DateRange.
type Value interface {
	empty() bool
}

type Text string

func (t Text) empty() bool { return strings.TrimSpace(string(t)) == "" }

// DateRange bounds a date column. Name optionally selects which date column
// is compared; it must itself be a date field.
type DateRange struct {
	From string `mapstructure:"from" json:"from,omitempty"`
	To   string `mapstructure:"to" json:"to,omitempty"`
	Name string `mapstructure:"name" json:"name,omitempty"`
}

func (r DateRange) empty() bool {
	return strings.TrimSpace(r.From) == "" && strings.TrimSpace(r.To) == ""
}

// Params keeps filter values in insertion order.
type Params struct {
	fields []string
	values map[string]Value
}

func NewParams() Params {
	return Params{values: map[string]Value{}}
}

// Set stores value under field. Replacing an existing field keeps its
// original position.
func (p *Params) Set(field string, value Value) {
	field = strings.TrimSpace(field)
	if field == "" || value == nil {
		return
	}
	if p.values == nil {
		p.values = map[string]Value{}
	}
	if _, exists := p.values[field]; !exists {
		p.fields = append(p.fields, field)
	}
	p.values[field] = value
}

func (p Params) Get(field string) (Value, bool) {
	value, ok := p.values[field]
	return value, ok
}

func (p Params) Fields() []string {
	return append([]string(nil), p.fields...)
}

func (p Params) Len() int { return len(p.fields) }

// ParamsFromMap decodes a JSON-style mapping. String values become Text and
// nested objects become DateRange. Keys are taken in sorted order since map
// iteration carries no order.
func ParamsFromMap(raw map[string]any) (Params, error) {
	params := NewParams()
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value, err := decodeValue(key, raw[key])
		if err != nil {
			return Params{}, err
		}
		if value != nil {
			params.Set(key, value)
		}
	}
	return params, nil
}

func decodeValue(field string, raw any) (Value, error) {
	switch typed := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return Text(typed), nil
	case Text:
		return typed, nil
	case DateRange:
		return typed, nil
	case map[string]any, map[string]string:
		var out DateRange
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &out,
			WeaklyTypedInput: true,
			TagName:          "mapstructure",
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(typed); err != nil {
			return nil, filterBadInput(field, "exports: invalid date range for "+field+": "+err.Error())
		}
		return out, nil
	case fmt.Stringer:
		return Text(typed.String()), nil
	default:
		return Text(fmt.Sprint(typed)), nil
	}
}

// Request is a filtered, paginated export listing.
type Request struct {
	Filters Params
	Page    int
	PerPage int
}

// ParseQuery decodes a raw query string such as
// "filters[created_at][from]=2024-01-01&filters[status]=done&page=2",
// preserving the parameter order of the query.
func ParseQuery(rawQuery string) (Request, error) {
	req := Request{Filters: NewParams()}
	ranges := map[string]*DateRange{}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return Request{}, filterBadInput(rawKey, "exports: invalid query key: "+err.Error())
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return Request{}, filterBadInput(key, "exports: invalid query value: "+err.Error())
		}
		if err := req.assign(key, value, ranges); err != nil {
			return Request{}, err
		}
	}
	return req, nil
}

// ParseParams decodes url.Values. Keys are applied in sorted order.
func ParseParams(values url.Values) (Request, error) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		for _, value := range values[key] {
			pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(value))
		}
	}
	return ParseQuery(strings.Join(pairs, "&"))
}

func (r *Request) assign(key string, value string, ranges map[string]*DateRange) error {
	switch key {
	case "page":
		return assignInt(&r.Page, key, value)
	case "per_page":
		return assignInt(&r.PerPage, key, value)
	}
	path, ok := filterPath(key)
	if !ok {
		return nil
	}
	switch len(path) {
	case 1:
		r.Filters.Set(path[0], Text(value))
	case 2:
		current, exists := ranges[path[0]]
		if !exists {
			current = &DateRange{}
			ranges[path[0]] = current
		}
		switch path[1] {
		case "from":
			current.From = value
		case "to":
			current.To = value
		case "name":
			current.Name = value
		default:
			return nil
		}
		r.Filters.Set(path[0], *current)
	}
	return nil
}

// filterPath splits "filters[a][b]" into ["a", "b"].
func filterPath(key string) ([]string, bool) {
	rest, ok := strings.CutPrefix(key, "filters")
	if !ok || rest == "" {
		return nil, false
	}
	var path []string
	for rest != "" {
		if rest[0] != '[' {
			return nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, false
		}
		segment := strings.TrimSpace(rest[1:end])
		if segment == "" {
			return nil, false
		}
		path = append(path, segment)
		rest = rest[end+1:]
	}
	if len(path) == 0 || len(path) > 2 {
		return nil, false
	}
	return path, true
}

func assignInt(target *int, key string, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return filterBadInput(key, "exports: "+key+" must be a non-negative integer")
	}
	*target = parsed
	return nil
}
