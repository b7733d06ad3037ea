package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Influence chain: feed -> temp -> pressure, with temp also the caller's
// target. "feed" is never affected by anything, so it is the only
// independent variable.
func chainRequest() *CalcEngineRequest {
	return &CalcEngineRequest{
		Pairs: []Pair{
			{
				From:         Entity{NameID: "temp"},
				To:           Entity{NameID: "feed"},
				Relationship: Relationship{Type: "is_affected", Gain: 0.8},
			},
			{
				From:         Entity{NameID: "pressure"},
				To:           Entity{NameID: "temp"},
				Relationship: Relationship{Type: "is_affected", Gain: 1.2},
			},
		},
		Targets: []Target{{NameID: "temp"}},
		Label:   "recommendations",
	}
}

func TestSplitVariables(t *testing.T) {
	dependent, independent := SplitVariables(chainRequest())

	require.Len(t, independent, 1)
	assert.Equal(t, "feed", independent[0].NameID)

	// "temp" is a target, so only "pressure" remains dependent.
	require.Len(t, dependent, 1)
	assert.Equal(t, "pressure", dependent[0].NameID)
}

func TestSplitVariablesEmptyRequest(t *testing.T) {
	dependent, independent := SplitVariables(&CalcEngineRequest{})
	assert.Empty(t, dependent)
	assert.Empty(t, independent)
}

func TestCollectNameIDs(t *testing.T) {
	request := chainRequest()
	request.Targets = append(request.Targets, Target{NameID: "flow"})

	names := collectNameIDs(request)
	assert.ElementsMatch(t, []string{"temp", "feed", "pressure", "flow"}, names)
}
