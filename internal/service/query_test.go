package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTransformWrapsPlainQuery(t *testing.T) {
	svc := NewQueryService(nil, zap.NewNop())

	got := svc.Transform("SELECT * FROM tags;", nil)

	assert.True(t, strings.HasPrefix(got, "WITH original_query AS ("))
	assert.Contains(t, got, "SELECT * FROM tags")
	assert.True(t, strings.HasSuffix(got, "SELECT * FROM original_query"))
	assert.NotContains(t, got, ";")
}

func TestTransformMapsTimeBucketColumns(t *testing.T) {
	svc := NewQueryService(nil, zap.NewNop())

	query := `SELECT time_bucket('1 hour', ts.timestamp) AS bucket, avg(ts.value) AS avg_value, tags.name
FROM time_series ts JOIN tags ON ts.tag_id = tags.id
GROUP BY bucket, tags.name`

	got := svc.Transform(query, nil)

	assert.Contains(t, got, "bucket AS timestamp")
	assert.Contains(t, got, "avg_value AS value")
	assert.Contains(t, got, "name AS tag_id")
	assert.Contains(t, got, "ORDER BY timestamp, tag_id")
}

func TestTransformCustomMapping(t *testing.T) {
	svc := NewQueryService(nil, zap.NewNop())

	got := svc.Transform("SELECT time_bucket('5m', t) AS bucket FROM x", map[string]string{
		"bucket": "window_start",
	})

	assert.Contains(t, got, "bucket AS window_start")
	assert.Contains(t, got, "ORDER BY window_start")
}

func TestAnalyze(t *testing.T) {
	svc := NewQueryService(nil, zap.NewNop())

	tests := []struct {
		name  string
		query string
		want  QueryAnalysis
	}{
		{
			name:  "aggregated time bucket query",
			query: "SELECT time_bucket('1h', ts) AS bucket, avg(value) FROM time_series JOIN tags ON tags.id = tag_id LIMIT 100",
			want: QueryAnalysis{
				Tables:        []string{"time_series", "tags"},
				HasTimeBucket: true,
				HasAggregates: true,
				HasLimit:      true,
				Kind:          "select",
			},
		},
		{
			name:  "plain select",
			query: "SELECT name FROM tags",
			want: QueryAnalysis{
				Tables: []string{"tags"},
				Kind:   "select",
			},
		},
		{
			name:  "update statement",
			query: "UPDATE tags SET name = 'x'",
			want: QueryAnalysis{
				Kind: "update",
			},
		},
		{
			name:  "cte",
			query: "WITH recent AS (SELECT * FROM time_series) SELECT count(*) FROM recent",
			want: QueryAnalysis{
				Tables:        []string{"time_series", "recent"},
				HasAggregates: true,
				Kind:          "cte",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Analyze(tt.query))
		})
	}
}
