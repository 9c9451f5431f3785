package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func parseQuery(t *testing.T, raw string) *ListQuery {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return ParseListQuery(values)
}

func TestParseListQueryDefaults(t *testing.T) {
	q := parseQuery(t, "")

	assert.Equal(t, int64(1), q.Page)
	assert.Equal(t, int64(10), q.Limit)
	assert.Equal(t, int64(0), q.Skip())
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, q.Sort)
	assert.Empty(t, q.Filter)
}

func TestParseListQueryPageCoercion(t *testing.T) {
	tests := []struct {
		raw      string
		page     int64
		limit    int64
		wantSkip int64
	}{
		{"page=3&limit=5", 3, 5, 10},
		{"page=0", 1, 10, 0},
		{"page=-2", 1, 10, 0},
		{"page=abc", 1, 10, 0},
		{"limit=-1", 1, 10, 0},
		{"page=2", 2, 10, 10},
	}
	for _, tt := range tests {
		q := parseQuery(t, tt.raw)
		assert.Equal(t, tt.page, q.Page, tt.raw)
		assert.Equal(t, tt.limit, q.Limit, tt.raw)
		assert.Equal(t, tt.wantSkip, q.Skip(), tt.raw)
	}
}

func TestParseListQuerySort(t *testing.T) {
	q := parseQuery(t, "sort=likes,-createdAt")

	require.Len(t, q.Sort, 2)
	assert.Equal(t, bson.E{Key: "likes", Value: 1}, q.Sort[0])
	assert.Equal(t, bson.E{Key: "createdAt", Value: -1}, q.Sort[1])
}

func TestParseListQueryProjection(t *testing.T) {
	q := parseQuery(t, "select=description,image, tags")

	assert.Equal(t, bson.D{
		{Key: "description", Value: 1},
		{Key: "image", Value: 1},
		{Key: "tags", Value: 1},
	}, q.Projection)
}

func TestParseListQueryFilters(t *testing.T) {
	q := parseQuery(t, "location=Lagos&likes[gte]=3&score[lt]=1.5&confirmed=true")

	assert.Equal(t, "Lagos", q.Filter["location"])
	assert.Equal(t, bson.M{"$gte": int64(3)}, q.Filter["likes"])
	assert.Equal(t, bson.M{"$lt": 1.5}, q.Filter["score"])
	assert.Equal(t, true, q.Filter["confirmed"])
}

func TestParseListQueryUnknownOperatorIgnored(t *testing.T) {
	q := parseQuery(t, "likes[regex]=x")
	assert.Empty(t, q.Filter)
}

func TestParseListQueryReservedKeysNotFilters(t *testing.T) {
	q := parseQuery(t, "page=2&limit=4&sort=createdAt&search=sun&select=tags")
	assert.Empty(t, q.Filter)
}

func TestSearchFilter(t *testing.T) {
	q := parseQuery(t, "search=sunset")

	filter := q.SearchFilter()
	require.NotNil(t, filter)
	or, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)

	re := or[0].(bson.M)["description"].(primitive.Regex)
	assert.Equal(t, "sunset", re.Pattern)
	assert.Equal(t, "i", re.Options)

	assert.Nil(t, parseQuery(t, "").SearchFilter())
}

func TestMatchCombinesFiltersAndSearch(t *testing.T) {
	q := parseQuery(t, "location=Lagos&search=beach")

	match := q.Match()
	assert.Equal(t, "Lagos", match["location"])
	assert.Contains(t, match, "$or")
}
