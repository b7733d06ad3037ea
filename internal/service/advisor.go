package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/aiclient"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/plantdb"
)

// pairQuery walks the influence subgraph reachable from the requested tags
// and returns every affects/is_affected pair with its gain, plus the limit
// and weight parameters attached to each endpoint's controller.
const pairQuery = `
MATCH (start:tag_id)
WHERE start.name_id IN $name_ids
CALL apoc.path.subgraphAll(start, {
  relationshipFilter: "is_affected",
  labelFilter: "+tag_id",
  uniqueness: "NODE_GLOBAL"
}) YIELD nodes
UNWIND nodes AS n
MATCH (n)-[r:is_affected]->(m:tag_id)
WITH DISTINCT n, m, r
RETURN
  n.name_id AS from_id,
  m.name_id AS to_id,
  type(r) AS rel_type,
  r.gain AS gain,
  r.gain_unit AS gain_unit
`

// latestValuesQuery fetches the most recent time-series value per tag from
// the plant's relational store.
const latestValuesQuery = `
SELECT DISTINCT ON (tags.name) tags.name, tags.unit_of_measure, ts.value
FROM time_series ts
INNER JOIN tags ON ts.tag_id = tags.id
WHERE tags.name IN ?
ORDER BY tags.name, ts.timestamp DESC
`

// Entity is one variable in a recommendation pair.
type Entity struct {
	NameID            string   `json:"name_id"`
	CurrentValue      *float64 `json:"current_value,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
}

// Relationship describes the influence edge between two entities.
type Relationship struct {
	Type     string  `json:"type"`
	Gain     float64 `json:"gain"`
	GainUnit string  `json:"gain_unit,omitempty"`
}

// Pair is one influence edge with both endpoints.
type Pair struct {
	From         Entity       `json:"from"`
	To           Entity       `json:"to"`
	Relationship Relationship `json:"relationship"`
}

// Target is a variable the caller wants driven to a value.
type Target struct {
	NameID            string   `json:"name_id"`
	CurrentValue      *float64 `json:"current_value,omitempty"`
	TargetValue       *float64 `json:"target_value,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
}

// CalcEngineRequest is the input assembled for the recommendation
// calculation engine behind the AI endpoint.
type CalcEngineRequest struct {
	Pairs   []Pair   `json:"pairs"`
	Targets []Target `json:"targets"`
	Label   string   `json:"label"`
}

// AdvisorService builds recommendation requests from the plant's graph and
// time-series data and forwards them to the AI endpoint.
type AdvisorService struct {
	scope *plantdb.Scope
	ai    *aiclient.Client
	log   *zap.Logger
}

// NewAdvisorService creates the advisor service.
func NewAdvisorService(scope *plantdb.Scope, ai *aiclient.Client, log *zap.Logger) *AdvisorService {
	return &AdvisorService{scope: scope, ai: ai, log: log}
}

// BuildRequest assembles a calc-engine request for the given target tags:
// influence pairs from the graph, current values from the time-series store.
func (s *AdvisorService) BuildRequest(ctx context.Context, plantID uint, nameIDs []string) (*CalcEngineRequest, error) {
	if len(nameIDs) == 0 {
		return nil, fmt.Errorf("at least one tag id is required")
	}

	pairs, err := s.fetchPairs(ctx, plantID, nameIDs)
	if err != nil {
		return nil, err
	}

	request := &CalcEngineRequest{
		Pairs: pairs,
		Label: "recommendations",
	}
	for _, nameID := range nameIDs {
		request.Targets = append(request.Targets, Target{NameID: nameID})
	}

	if err := s.fillCurrentValues(ctx, plantID, request); err != nil {
		return nil, err
	}
	return request, nil
}

// Advise assembles the request, applies the caller's target values and
// forwards it to the AI endpoint. The response is opaque.
func (s *AdvisorService) Advise(ctx context.Context, plantID uint, targetValues map[string]float64) (json.RawMessage, error) {
	nameIDs := make([]string, 0, len(targetValues))
	for nameID := range targetValues {
		nameIDs = append(nameIDs, nameID)
	}

	request, err := s.BuildRequest(ctx, plantID, nameIDs)
	if err != nil {
		return nil, err
	}
	for i := range request.Targets {
		if value, ok := targetValues[request.Targets[i].NameID]; ok {
			v := value
			request.Targets[i].TargetValue = &v
		}
	}

	return s.ai.Advise(ctx, plantID, request)
}

func (s *AdvisorService) fetchPairs(ctx context.Context, plantID uint, nameIDs []string) ([]Pair, error) {
	params := map[string]any{"name_ids": nameIDs}

	var pairs []Pair
	err := s.scope.WithGraph(ctx, plantID, neo4j.AccessModeRead, func(sess neo4j.SessionWithContext) error {
		result, err := sess.Run(ctx, pairQuery, params)
		if err != nil {
			return fmt.Errorf("run pair query: %w", err)
		}
		for result.Next(ctx) {
			record := result.Record()
			pair := Pair{}
			if v, ok := record.Get("from_id"); ok {
				pair.From.NameID, _ = v.(string)
			}
			if v, ok := record.Get("to_id"); ok {
				pair.To.NameID, _ = v.(string)
			}
			if v, ok := record.Get("rel_type"); ok {
				pair.Relationship.Type, _ = v.(string)
			}
			if v, ok := record.Get("gain"); ok {
				if gain, ok := v.(float64); ok {
					pair.Relationship.Gain = gain
				}
			}
			if v, ok := record.Get("gain_unit"); ok {
				pair.Relationship.GainUnit, _ = v.(string)
			}
			pairs = append(pairs, pair)
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("advisor pairs fetched",
		zap.Uint("plant_id", plantID),
		zap.Int("pair_count", len(pairs)))
	return pairs, nil
}

// fillCurrentValues populates every entity and target with the latest
// time-series value and unit from the plant's relational store.
func (s *AdvisorService) fillCurrentValues(ctx context.Context, plantID uint, request *CalcEngineRequest) error {
	names := collectNameIDs(request)
	if len(names) == 0 {
		return nil
	}

	type tagRow struct {
		Name          string
		UnitOfMeasure string
		Value         float64
	}
	var rows []tagRow
	err := s.scope.WithRelational(ctx, plantID, func(tx *gorm.DB) error {
		return tx.Raw(latestValuesQuery, names).Scan(&rows).Error
	})
	if err != nil {
		return err
	}

	values := make(map[string]tagRow, len(rows))
	for _, row := range rows {
		values[row.Name] = row
	}

	fill := func(e *Entity) {
		if row, ok := values[e.NameID]; ok {
			v := row.Value
			e.CurrentValue = &v
			e.UnitOfMeasurement = row.UnitOfMeasure
		}
	}
	for i := range request.Pairs {
		fill(&request.Pairs[i].From)
		fill(&request.Pairs[i].To)
	}
	for i := range request.Targets {
		if row, ok := values[request.Targets[i].NameID]; ok {
			v := row.Value
			request.Targets[i].CurrentValue = &v
			request.Targets[i].UnitOfMeasurement = row.UnitOfMeasure
		}
	}
	return nil
}

func collectNameIDs(request *CalcEngineRequest) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, pair := range request.Pairs {
		add(pair.From.NameID)
		add(pair.To.NameID)
	}
	for _, target := range request.Targets {
		add(target.NameID)
	}
	return names
}

// SplitVariables divides the variables of a request into dependent and
// independent sets. A variable is independent when it never appears as the
// "from" endpoint, i.e. nothing affects it; targets are excluded from the
// dependent set.
func SplitVariables(request *CalcEngineRequest) (dependent, independent []Entity) {
	fromSet := make(map[string]bool)
	for _, pair := range request.Pairs {
		fromSet[pair.From.NameID] = true
	}
	targetSet := make(map[string]bool)
	for _, target := range request.Targets {
		targetSet[target.NameID] = true
	}

	seen := make(map[string]bool)
	for _, pair := range request.Pairs {
		for _, entity := range []Entity{pair.From, pair.To} {
			if seen[entity.NameID] {
				continue
			}
			seen[entity.NameID] = true
			if !fromSet[entity.NameID] {
				independent = append(independent, entity)
			} else if !targetSet[entity.NameID] {
				dependent = append(dependent, entity)
			}
		}
	}
	return dependent, independent
}
