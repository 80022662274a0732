package milvus

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ── FilterSet Constructors ───────────────────────────────────────────────────

// NewFilterSet creates a FilterSet with the given clauses.
//
// Example:
//
//	milvus.NewFilterSet(
//	    milvus.Must(milvus.NewMatch("status", "published")),
//	    milvus.Should(milvus.NewMatch("tag", "ml"), milvus.NewMatch("tag", "ai")),
//	)
func NewFilterSet(clauses ...func(*FilterSet)) *FilterSet {
	fs := &FilterSet{}
	for _, clause := range clauses {
		clause(fs)
	}
	return fs
}

// Must sets the AND clause.
func Must(conditions ...FilterCondition) func(*FilterSet) {
	return func(fs *FilterSet) {
		fs.Must = &ConditionSet{Conditions: conditions}
	}
}

// Should sets the OR clause. At least one condition must match.
func Should(conditions ...FilterCondition) func(*FilterSet) {
	return func(fs *FilterSet) {
		fs.Should = &ConditionSet{Conditions: conditions}
	}
}

// MustNot sets the exclusion clause. Rows matching any condition are
// dropped.
func MustNot(conditions ...FilterCondition) func(*FilterSet) {
	return func(fs *FilterSet) {
		fs.MustNot = &ConditionSet{Conditions: conditions}
	}
}

// ── Condition Constructors ───────────────────────────────────────────────────

func NewMatch(field string, value any) *MatchCondition {
	return &MatchCondition{Field: field, Value: value}
}

func NewMatchAny(field string, values ...any) *MatchAnyCondition {
	return &MatchAnyCondition{Field: field, Values: values}
}

func NewMatchExcept(field string, values ...any) *MatchExceptCondition {
	return &MatchExceptCondition{Field: field, Values: values}
}

func NewNumericRange(field string, r NumericRange) *NumericRangeCondition {
	return &NumericRangeCondition{Field: field, Range: r}
}

func NewTimeRange(field string, r TimeRange) *TimeRangeCondition {
	return &TimeRangeCondition{Field: field, Range: r}
}

func NewIsNull(field string) *IsNullCondition {
	return &IsNullCondition{Field: field}
}

func NewIsEmpty(field string) *IsEmptyCondition {
	return &IsEmptyCondition{Field: field}
}

func NewArrayContains(field string, value any) *ArrayContainsCondition {
	return &ArrayContainsCondition{Field: field, Value: value}
}

// ── JSON Serialization ───────────────────────────────────────────────────────
//
// Filter sets travel in request payloads as JSON. Each condition is an
// object whose keys identify its kind:
//
//	{"field": "lang", "equalTo": "en"}
//	{"field": "tier", "anyOf": [1, 2]}
//	{"field": "tier", "noneOf": [3]}
//	{"field": "price", "greaterThanOrEqualTo": 1.5, "lessThan": 10}
//	{"field": "created_at", "after": "2024-01-01T00:00:00Z"}
//	{"field": "tags", "contains": "go"}
//	{"isNull": "owner"}
//	{"isEmpty": "tags"}

type numericRangeJSON struct {
	Field                string   `json:"field"`
	GreaterThan          *float64 `json:"greaterThan,omitempty"`
	GreaterThanOrEqualTo *float64 `json:"greaterThanOrEqualTo,omitempty"`
	LessThan             *float64 `json:"lessThan,omitempty"`
	LessThanOrEqualTo    *float64 `json:"lessThanOrEqualTo,omitempty"`
}

func (c *NumericRangeCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(numericRangeJSON{
		Field:                c.Field,
		GreaterThan:          c.Range.Gt,
		GreaterThanOrEqualTo: c.Range.Gte,
		LessThan:             c.Range.Lt,
		LessThanOrEqualTo:    c.Range.Lte,
	})
}

func (c *NumericRangeCondition) UnmarshalJSON(data []byte) error {
	var alias numericRangeJSON
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	c.Field = alias.Field
	c.Range = NumericRange{
		Gt:  alias.GreaterThan,
		Gte: alias.GreaterThanOrEqualTo,
		Lt:  alias.LessThan,
		Lte: alias.LessThanOrEqualTo,
	}
	return nil
}

type timeRangeJSON struct {
	Field      string     `json:"field"`
	After      *time.Time `json:"after,omitempty"`
	AtOrAfter  *time.Time `json:"atOrAfter,omitempty"`
	Before     *time.Time `json:"before,omitempty"`
	AtOrBefore *time.Time `json:"atOrBefore,omitempty"`
}

func (c *TimeRangeCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeRangeJSON{
		Field:      c.Field,
		After:      c.Range.Gt,
		AtOrAfter:  c.Range.Gte,
		Before:     c.Range.Lt,
		AtOrBefore: c.Range.Lte,
	})
}

func (c *TimeRangeCondition) UnmarshalJSON(data []byte) error {
	var alias timeRangeJSON
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	c.Field = alias.Field
	c.Range = TimeRange{
		Gt:  alias.After,
		Gte: alias.AtOrAfter,
		Lt:  alias.Before,
		Lte: alias.AtOrBefore,
	}
	return nil
}

// MarshalJSON writes the conditions as a JSON array.
func (cs *ConditionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(cs.Conditions)
}

// UnmarshalJSON detects the kind of every condition from its keys.
func (cs *ConditionSet) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cs.Conditions = make([]FilterCondition, 0, len(raw))
	for _, r := range raw {
		cond, err := parseCondition(r)
		if err != nil {
			return err
		}
		cs.Conditions = append(cs.Conditions, cond)
	}
	return nil
}

// ParseFilterSet decodes a JSON filter set.
func ParseFilterSet(data []byte) (*FilterSet, error) {
	var fs FilterSet
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("%w: filter set: %v", ErrInvalidRequest, err)
	}
	return &fs, nil
}

func parseCondition(data []byte) (FilterCondition, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, err
	}

	var cond FilterCondition
	switch {
	case hasKey(keys, "equalTo"):
		cond = &MatchCondition{}
	case hasKey(keys, "anyOf"):
		cond = &MatchAnyCondition{}
	case hasKey(keys, "noneOf"):
		cond = &MatchExceptCondition{}
	case hasKey(keys, "contains"):
		cond = &ArrayContainsCondition{}
	case hasKey(keys, "greaterThan", "greaterThanOrEqualTo", "lessThan", "lessThanOrEqualTo"):
		cond = &NumericRangeCondition{}
	case hasKey(keys, "after", "atOrAfter", "before", "atOrBefore"):
		cond = &TimeRangeCondition{}
	case hasKey(keys, "isNull"):
		cond = &IsNullCondition{}
	case hasKey(keys, "isEmpty"):
		cond = &IsEmptyCondition{}
	default:
		return nil, fmt.Errorf("unknown filter condition: %s", string(data))
	}
	if err := json.Unmarshal(data, cond); err != nil {
		return nil, err
	}
	return cond, nil
}

func hasKey(m map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
