package database

import (
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reserved query keys that never become filters.
var reservedQueryKeys = map[string]bool{
	"page":   true,
	"limit":  true,
	"sort":   true,
	"search": true,
	"select": true,
}

var filterOperators = map[string]string{
	"gt":  "$gt",
	"gte": "$gte",
	"lt":  "$lt",
	"lte": "$lte",
	"eq":  "$eq",
}

// ListQuery is the parsed form of the list-endpoint query string: pagination,
// sort, free-text search, field[op] filters and a projection allow-list.
type ListQuery struct {
	Page       int64
	Limit      int64
	Sort       bson.D
	Search     string
	Filter     bson.M
	Projection bson.D
}

// ParseListQuery applies the coercion rules of the list pipeline: page
// defaults to 1 and anything below 1 is clamped, limit defaults to 10,
// sort accepts "field,-other", select is a comma list, and remaining
// "field[op]=v" pairs become comparison filters.
func ParseListQuery(values url.Values) *ListQuery {
	q := &ListQuery{
		Page:   1,
		Limit:  10,
		Filter: bson.M{},
	}

	if page, err := strconv.ParseInt(values.Get("page"), 10, 64); err == nil && page >= 1 {
		q.Page = page
	}
	if limit, err := strconv.ParseInt(values.Get("limit"), 10, 64); err == nil && limit > 0 {
		q.Limit = limit
	}

	if sort := values.Get("sort"); sort != "" {
		for _, field := range strings.Split(sort, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			order := 1
			if strings.HasPrefix(field, "-") {
				order = -1
				field = field[1:]
			}
			q.Sort = append(q.Sort, bson.E{Key: field, Value: order})
		}
	}
	if len(q.Sort) == 0 {
		q.Sort = bson.D{{Key: "createdAt", Value: -1}}
	}

	q.Search = values.Get("search")

	if sel := values.Get("select"); sel != "" {
		for _, field := range strings.Split(sel, ",") {
			if field = strings.TrimSpace(field); field != "" {
				q.Projection = append(q.Projection, bson.E{Key: field, Value: 1})
			}
		}
	}

	for key, vals := range values {
		if reservedQueryKeys[key] || len(vals) == 0 {
			continue
		}
		field, op, ok := splitFilterKey(key)
		if !ok {
			continue
		}
		value := coerceFilterValue(vals[0])
		if op == "" || op == "$eq" {
			q.Filter[field] = value
		} else {
			q.Filter[field] = bson.M{op: value}
		}
	}

	return q
}

// Skip is (page-1)*limit with page already clamped to >= 1.
func (q *ListQuery) Skip() int64 {
	return (q.Page - 1) * q.Limit
}

// SearchFilter is the case-insensitive substring match over description and
// tags, or nil when no search term was given.
func (q *ListQuery) SearchFilter() bson.M {
	if q.Search == "" {
		return nil
	}
	re := primitive.Regex{Pattern: q.Search, Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"description": re},
		bson.M{"tags": re},
	}}
}

// Match combines the field filters with the search clause.
func (q *ListQuery) Match() bson.M {
	match := bson.M{}
	for k, v := range q.Filter {
		match[k] = v
	}
	if search := q.SearchFilter(); search != nil {
		match["$or"] = search["$or"]
	}
	return match
}

// splitFilterKey parses "field[gte]" style keys. A bare "field" maps to
// equality; an unknown operator suffix rejects the key.
func splitFilterKey(key string) (field, op string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, "", key != ""
	}
	if !strings.HasSuffix(key, "]") || open == 0 {
		return "", "", false
	}
	mongoOp, known := filterOperators[key[open+1:len(key)-1]]
	if !known {
		return "", "", false
	}
	return key[:open], mongoOp, true
}

// coerceFilterValue keeps numeric comparisons numeric.
func coerceFilterValue(v string) interface{} {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if v == "true" {
		return true
	}
	if v == "false" {
		return false
	}
	return v
}
