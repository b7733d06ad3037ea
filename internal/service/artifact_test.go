package service

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestFromAIResponseStoresChart(t *testing.T) {
	svc := NewArtifactService(nil, zap.NewNop())
	db, mock := newMockGorm(t)

	raw := json.RawMessage(`{
		"answer": "Temperature trend for reactor R-101 over the last 24 hours",
		"answer_type": "plot",
		"plot_type": "line",
		"question_type": "explore",
		"data": [{"name": "R-101", "data": [{"timestamp": "2025-01-01T00:00:00Z", "value": 42.1}]}]
	}`)

	mock.ExpectQuery(`INSERT INTO "artifacts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	artifact, err := svc.FromAIResponse(db, "sess-1", 42, raw, nil)
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, "chart", artifact.ArtifactType)
	assert.Equal(t, "Temperature trend for reactor R-101 over the last 24 hours", artifact.Title)
	assert.Contains(t, artifact.Metadata, `"plot_type":"line"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFromAIResponseIgnoresNonArtifacts(t *testing.T) {
	svc := NewArtifactService(nil, zap.NewNop())

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `"plain text answer"`},
		{name: "short answer", raw: `{"answer": "42"}`},
		{name: "error answer", raw: `{"answer": "error: no data found for the requested tags in this range"}`},
		{name: "typed without data", raw: `{"answer": "chart description here with plenty of detail about the data", "plot_type": "line"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifact, err := svc.FromAIResponse(nil, "sess-1", 42, json.RawMessage(tt.raw), nil)
			require.NoError(t, err)
			assert.Nil(t, artifact)
		})
	}
}

func TestHasArtifactData(t *testing.T) {
	assert.True(t, hasArtifactData(aiResponse{
		PlotType: "line",
		Data: []struct {
			Name string           `json:"name"`
			Data []map[string]any `json:"data"`
		}{{Name: "R-101"}},
	}))

	assert.True(t, hasArtifactData(aiResponse{
		Answer: "Here is the code implementation you asked for:\n```go\nfunc main() {}\n```",
	}))

	assert.False(t, hasArtifactData(aiResponse{Answer: "some code"}))
	assert.False(t, hasArtifactData(aiResponse{Answer: strings.Repeat("hello world ", 10)}))
}

func TestIsErrorResponse(t *testing.T) {
	assert.True(t, isErrorResponse(aiResponse{Answer: "Unable to fetch data for the requested period"}))
	assert.True(t, isErrorResponse(aiResponse{Answer: "ok"}))
	assert.True(t, isErrorResponse(aiResponse{Answer: "a fine chart with plenty of context", PlotType: "line"}))
	assert.False(t, isErrorResponse(aiResponse{
		Answer: "Here is the full breakdown of reactor temperatures",
		Data: []struct {
			Name string           `json:"name"`
			Data []map[string]any `json:"data"`
		}{{Name: "R-101"}},
	}))
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Reactor analysis", extractTitle("# Reactor analysis\nbody text"))
	assert.Equal(t, "Second line", extractTitle("\n\nSecond line"))
	assert.Equal(t, "AI Generated Artifact", extractTitle("   \n  "))

	long := strings.Repeat("x", 200)
	title := extractTitle(long)
	assert.Len(t, title, 120)
	assert.True(t, strings.HasSuffix(title, "..."))
}

func TestDetermineArtifactType(t *testing.T) {
	assert.Equal(t, "chart", determineArtifactType(aiResponse{PlotType: "bar"}))
	assert.Equal(t, "code", determineArtifactType(aiResponse{Answer: "```python\nprint(1)\n```"}))
	assert.Equal(t, "diagram", determineArtifactType(aiResponse{Answer: "A process diagram of the plant"}))
	assert.Equal(t, "analysis", determineArtifactType(aiResponse{QuestionType: "explore"}))
	assert.Equal(t, "general", determineArtifactType(aiResponse{Answer: "plain text"}))
}
