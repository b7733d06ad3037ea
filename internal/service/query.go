package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/plantdb"
)

// defaultColumnMapping standardizes time-bucket query output columns.
var defaultColumnMapping = map[string]string{
	"bucket":    "timestamp",
	"avg_value": "value",
	"name":      "tag_id",
}

// QueryResult holds the rows of an executed analytical query.
type QueryResult struct {
	Query           string           `json:"query"`
	Results         []map[string]any `json:"results"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMS float64          `json:"execution_time_ms"`
}

// QueryAnalysis summarizes the structure of a query.
type QueryAnalysis struct {
	Tables        []string `json:"tables"`
	HasTimeBucket bool     `json:"has_time_bucket"`
	HasAggregates bool     `json:"has_aggregates"`
	HasLimit      bool     `json:"has_limit"`
	Kind          string   `json:"kind"`
}

// QueryService transforms and executes analytical queries on plant
// databases.
type QueryService struct {
	scope *plantdb.Scope
	log   *zap.Logger
}

// NewQueryService creates the query service.
func NewQueryService(scope *plantdb.Scope, log *zap.Logger) *QueryService {
	return &QueryService{scope: scope, log: log}
}

// Transform wraps a query in a WITH clause to standardize its column names.
// Time-bucket queries get the explicit column mapping; anything else is
// passed through the wrapper unchanged.
func (s *QueryService) Transform(original string, columnMapping map[string]string) string {
	if len(columnMapping) == 0 {
		columnMapping = defaultColumnMapping
	}

	cleaned := strings.TrimSpace(original)
	cleaned = strings.TrimSuffix(cleaned, ";")

	if !strings.Contains(strings.ToLower(cleaned), "time_bucket") {
		return fmt.Sprintf("WITH original_query AS (\n%s\n)\nSELECT * FROM original_query", cleaned)
	}

	// Deterministic column order for the mapped select list.
	order := []string{"bucket", "avg_value", "name"}
	var selects []string
	for _, original := range order {
		if mapped, ok := columnMapping[original]; ok {
			selects = append(selects, fmt.Sprintf("%s AS %s", original, mapped))
		}
	}
	for original, mapped := range columnMapping {
		known := false
		for _, o := range order {
			if o == original {
				known = true
				break
			}
		}
		if !known {
			selects = append(selects, fmt.Sprintf("%s AS %s", original, mapped))
		}
	}

	orderBy := fmt.Sprintf("%s, %s",
		mappingOrDefault(columnMapping, "bucket", "timestamp"),
		mappingOrDefault(columnMapping, "name", "tag_id"))

	return fmt.Sprintf("WITH original_query AS (\n%s\n)\nSELECT\n  %s\nFROM original_query\nORDER BY %s",
		cleaned, strings.Join(selects, ",\n  "), orderBy)
}

func mappingOrDefault(mapping map[string]string, key, fallback string) string {
	if v, ok := mapping[key]; ok {
		return v
	}
	return fallback
}

// Execute transforms the query and runs it on the plant's relational
// database, returning rows as generic maps.
func (s *QueryService) Execute(ctx context.Context, plantID uint, query string, params map[string]any) (*QueryResult, error) {
	transformed := s.Transform(query, nil)
	start := time.Now()

	var results []map[string]any
	err := s.scope.WithRelational(ctx, plantID, func(tx *gorm.DB) error {
		stmt := tx.Raw(transformed)
		if len(params) > 0 {
			stmt = tx.Raw(transformed, params)
		}
		return stmt.Scan(&results).Error
	})
	if err != nil {
		return nil, err
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	s.log.Info("query executed",
		zap.Uint("plant_id", plantID),
		zap.Int("row_count", len(results)),
		zap.Float64("execution_time_ms", elapsed))

	return &QueryResult{
		Query:           transformed,
		Results:         results,
		RowCount:        len(results),
		ExecutionTimeMS: elapsed,
	}, nil
}

var (
	tableRe     = regexp.MustCompile(`(?i)(?:from|join)\s+([a-zA-Z_][a-zA-Z0-9_.]*)`)
	aggregateRe = regexp.MustCompile(`(?i)\b(avg|sum|min|max|count)\s*\(`)
	limitRe     = regexp.MustCompile(`(?i)\blimit\s+\d+`)
)

// Analyze extracts structural information from a query without running it.
func (s *QueryService) Analyze(query string) QueryAnalysis {
	analysis := QueryAnalysis{
		HasTimeBucket: strings.Contains(strings.ToLower(query), "time_bucket"),
		HasAggregates: aggregateRe.MatchString(query),
		HasLimit:      limitRe.MatchString(query),
		Kind:          "select",
	}

	lower := strings.ToLower(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(lower, "insert"):
		analysis.Kind = "insert"
	case strings.HasPrefix(lower, "update"):
		analysis.Kind = "update"
	case strings.HasPrefix(lower, "delete"):
		analysis.Kind = "delete"
	case strings.HasPrefix(lower, "with"):
		analysis.Kind = "cte"
	}

	seen := make(map[string]bool)
	for _, match := range tableRe.FindAllStringSubmatch(query, -1) {
		table := strings.ToLower(match[1])
		if !seen[table] {
			seen[table] = true
			analysis.Tables = append(analysis.Tables, table)
		}
	}

	return analysis
}
