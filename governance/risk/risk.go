// Package risk scores entities with a fixed additive formula.
//
// A score is the sum of a severity weight, an age weight for entities
// that are not closed, a status weight and, for collisions, a harm
// weight. Scores map onto four levels. The only time input is the
// caller's as-of timestamp.
package risk

import (
	"math"
	"strings"
	"time"

	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
)

// Level is a qualitative risk bucket
type Level string

const (
	Low      Level = "LOW"
	Medium   Level = "MEDIUM"
	High     Level = "HIGH"
	Critical Level = "CRITICAL"
)

// Bucket upper bounds (exclusive)
const (
	lowBelow    = 25
	mediumBelow = 45
	highBelow   = 65
)

// severityStep is the weight added per severity rank: low 10 up to critical 40
const severityStep = 10

var statusWeights = map[string]int{
	"open":          10,
	"investigating": 5,
	"closed":        0,
}

// Harm weights apply to collisions only
const (
	injuryWeight    = 5
	injuryWeightCap = 20
	fatalityWeight  = 30
)

// dateFields are tried in order for an entity's age
var dateFields = []string{"occurred_at", "received_at", "created_at"}

// Inputs are the values that produced a score
type Inputs struct {
	Severity       string    `json:"severity"`
	SeverityWeight int       `json:"severity_weight"`
	AgeDays        int       `json:"age_days"`
	AgeWeight      int       `json:"age_weight"`
	Status         string    `json:"status"`
	StatusWeight   int       `json:"status_weight"`
	HarmWeight     int       `json:"harm_weight"`
	AsOf           time.Time `json:"as_of"`
}

// Assessment is the risk of one entity at one point in time
type Assessment struct {
	EntityType entity.Type `json:"entity_type"`
	EntityRef  string      `json:"entity_ref,omitempty"`
	Level      Level       `json:"level"`
	Score      int         `json:"score"`
	Inputs     Inputs      `json:"inputs"`
}

// Scorer is stateless
type Scorer struct{}

// NewScorer creates a Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score assesses fields as of asOf. Unrecognised severities and statuses
// weigh nothing; a missing status counts as open.
func (s *Scorer) Score(fields map[string]any, et entity.Type, asOf time.Time) (*Assessment, error) {
	if !known(et) {
		return nil, errors.Wrapf(entity.ErrUnknownType, "%q", et)
	}
	asOf = asOf.UTC()

	in := Inputs{AsOf: asOf}
	in.Severity, in.SeverityWeight = severityOf(fields)
	in.Status, in.StatusWeight = statusOf(fields)
	if in.Status != "closed" {
		in.AgeDays = ageDays(fields, asOf)
		in.AgeWeight = ageWeight(in.AgeDays)
	}
	if et == entity.Collision {
		in.HarmWeight = harmWeight(fields)
	}

	score := in.SeverityWeight + in.AgeWeight + in.StatusWeight + in.HarmWeight
	return &Assessment{
		EntityType: et,
		EntityRef:  refOf(fields),
		Level:      LevelFor(score),
		Score:      score,
		Inputs:     in,
	}, nil
}

// LevelFor buckets a score
func LevelFor(score int) Level {
	switch {
	case score < lowBelow:
		return Low
	case score < mediumBelow:
		return Medium
	case score < highBelow:
		return High
	default:
		return Critical
	}
}

func known(et entity.Type) bool {
	for _, t := range entity.All() {
		if t == et {
			return true
		}
	}
	return false
}

func severityOf(fields map[string]any) (string, int) {
	raw, _ := entity.AsString(fields["severity"])
	if raw == "" {
		return "", 0
	}
	if v, ok := entity.Severity.Normalize(raw); ok {
		return v, severityStep * (entity.Severity.Rank(v) + 1)
	}
	return strings.ToLower(raw), 0
}

func statusOf(fields map[string]any) (string, int) {
	raw, _ := entity.AsString(fields["status"])
	if raw == "" {
		return "open", statusWeights["open"]
	}
	if v, ok := entity.Status.Normalize(raw); ok {
		return v, statusWeights[v]
	}
	return strings.ToLower(raw), 0
}

// ageDays is the number of whole days from the entity's date to asOf.
// Missing, unparseable and future dates give 0.
func ageDays(fields map[string]any, asOf time.Time) int {
	for _, name := range dateFields {
		if !entity.IsPresent(fields[name]) {
			continue
		}
		d, err := entity.ParseDate(fields[name])
		if err != nil {
			return 0
		}
		days := int(math.Floor(asOf.Sub(d).Hours() / 24))
		if days < 0 {
			return 0
		}
		return days
	}
	return 0
}

func ageWeight(days int) int {
	switch {
	case days < 7:
		return 0
	case days < 30:
		return 5
	case days < 90:
		return 10
	default:
		return 20
	}
}

func harmWeight(fields map[string]any) int {
	w := 0
	if n, err := entity.ParseInt(fields["injuries"]); err == nil && n > 0 {
		if n >= injuryWeightCap/injuryWeight {
			w += injuryWeightCap
		} else {
			w += n * injuryWeight
		}
	}
	if n, err := entity.ParseInt(fields["fatalities"]); err == nil && n > 0 {
		w += fatalityWeight
	}
	return w
}

func refOf(fields map[string]any) string {
	if ref := entity.ExternalRefOf(fields); ref != "" {
		return ref
	}
	id, _ := entity.AsString(fields["id"])
	return id
}
