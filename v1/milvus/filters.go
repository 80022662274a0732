package milvus

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FilterCondition renders one boolean clause of a Milvus expression.
type FilterCondition interface {
	Expr() (string, error)
}

// FilterSet supports Must (AND), Should (OR), and MustNot (NOT) clauses.
//
// Example:
//
//	filters := &milvus.FilterSet{
//	    Must: &milvus.ConditionSet{
//	        Conditions: []milvus.FilterCondition{
//	            &milvus.MatchCondition{Field: "city", Value: "London"},
//	        },
//	    },
//	}
type FilterSet struct {
	Must    *ConditionSet `json:"must,omitempty"`
	Should  *ConditionSet `json:"should,omitempty"`
	MustNot *ConditionSet `json:"mustNot,omitempty"`
}

// ConditionSet holds a group of conditions for a single clause.
type ConditionSet struct {
	Conditions []FilterCondition
}

// Expr renders the set. An empty set renders as "".
func (f *FilterSet) Expr() (string, error) {
	if f == nil {
		return "", nil
	}
	var parts []string

	must, err := f.Must.render(" and ")
	if err != nil {
		return "", err
	}
	if must != "" {
		parts = append(parts, must)
	}

	should, err := f.Should.render(" or ")
	if err != nil {
		return "", err
	}
	if should != "" {
		parts = append(parts, should)
	}

	mustNot, err := f.MustNot.render(" or ")
	if err != nil {
		return "", err
	}
	if mustNot != "" {
		parts = append(parts, "not "+mustNot)
	}

	if len(parts) == 1 && strings.HasPrefix(parts[0], "(") {
		return parts[0][1 : len(parts[0])-1], nil
	}
	return strings.Join(parts, " and "), nil
}

func (s *ConditionSet) render(op string) (string, error) {
	if s == nil || len(s.Conditions) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(s.Conditions))
	for _, c := range s.Conditions {
		if c == nil {
			continue
		}
		clause, err := c.Expr()
		if err != nil {
			return "", err
		}
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "(" + strings.Join(clauses, op) + ")", nil
}

// CombineFilters joins non-empty expressions with "and".
func CombineFilters(exprs ...string) string {
	var parts []string
	for _, e := range exprs {
		if e = strings.TrimSpace(e); e != "" {
			parts = append(parts, e)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	for i, p := range parts {
		parts[i] = "(" + p + ")"
	}
	return strings.Join(parts, " and ")
}

// ── Match Conditions ─────────────────────────────────────────────────────────

// MatchCondition is an exact match: field == value.
type MatchCondition struct {
	Field string `json:"field"`
	Value any    `json:"equalTo"`
}

func (c *MatchCondition) Expr() (string, error) {
	v, err := literal(c.Value)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", c.Field, err)
	}
	return fmt.Sprintf("%s == %s", c.Field, v), nil
}

// MatchAnyCondition matches if the value is one of Values: field in [...].
// An empty list matches nothing.
type MatchAnyCondition struct {
	Field  string `json:"field"`
	Values []any  `json:"anyOf"`
}

func (c *MatchAnyCondition) Expr() (string, error) {
	if len(c.Values) == 0 {
		return "false", nil
	}
	list, err := literalList(c.Values)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", c.Field, err)
	}
	return fmt.Sprintf("%s in %s", c.Field, list), nil
}

// MatchExceptCondition matches if the value is none of Values. An empty
// list matches everything.
type MatchExceptCondition struct {
	Field  string `json:"field"`
	Values []any  `json:"noneOf"`
}

func (c *MatchExceptCondition) Expr() (string, error) {
	if len(c.Values) == 0 {
		return "true", nil
	}
	list, err := literalList(c.Values)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", c.Field, err)
	}
	return fmt.Sprintf("%s not in %s", c.Field, list), nil
}

// ── Range Conditions ─────────────────────────────────────────────────────────

// NumericRange defines bounds for numeric filtering. Nil bounds are open.
type NumericRange struct {
	Gt  *float64
	Gte *float64
	Lt  *float64
	Lte *float64
}

// NumericRangeCondition filters by numeric range.
type NumericRangeCondition struct {
	Field string       `json:"field"`
	Range NumericRange `json:"-"`
}

func (c *NumericRangeCondition) Expr() (string, error) {
	return rangeExpr(c.Field, c.Range.Gt, c.Range.Gte, c.Range.Lt, c.Range.Lte, func(f float64) string {
		return strconv.FormatFloat(f, 'g', -1, 64)
	})
}

// TimeRange defines bounds for time filtering. Times are compared as Unix
// seconds, the usual representation of timestamps in Int64 fields.
type TimeRange struct {
	Gt  *time.Time
	Gte *time.Time
	Lt  *time.Time
	Lte *time.Time
}

// TimeRangeCondition filters an Int64 Unix-seconds field by time range.
type TimeRangeCondition struct {
	Field string    `json:"field"`
	Range TimeRange `json:"-"`
}

func (c *TimeRangeCondition) Expr() (string, error) {
	return rangeExpr(c.Field, c.Range.Gt, c.Range.Gte, c.Range.Lt, c.Range.Lte, func(t time.Time) string {
		return strconv.FormatInt(t.Unix(), 10)
	})
}

func rangeExpr[T any](field string, gt, gte, lt, lte *T, format func(T) string) (string, error) {
	var clauses []string
	add := func(op string, bound *T) {
		if bound != nil {
			clauses = append(clauses, fmt.Sprintf("%s %s %s", field, op, format(*bound)))
		}
	}
	add(">", gt)
	add(">=", gte)
	add("<", lt)
	add("<=", lte)
	if len(clauses) == 0 {
		return "", fmt.Errorf("%w: range on %q has no bounds", ErrInvalidRequest, field)
	}
	return strings.Join(clauses, " and "), nil
}

// ── Null/Empty Conditions ────────────────────────────────────────────────────

// IsNullCondition matches rows whose nullable field holds null.
type IsNullCondition struct {
	Field string `json:"isNull"`
}

func (c *IsNullCondition) Expr() (string, error) {
	return c.Field + " is null", nil
}

// IsEmptyCondition matches null values and empty arrays.
type IsEmptyCondition struct {
	Field string `json:"isEmpty"`
}

func (c *IsEmptyCondition) Expr() (string, error) {
	return fmt.Sprintf("(%s is null or array_length(%s) == 0)", c.Field, c.Field), nil
}

// ── Array Conditions ─────────────────────────────────────────────────────────

// ArrayContainsCondition matches arrays holding Value.
type ArrayContainsCondition struct {
	Field string `json:"field"`
	Value any    `json:"contains"`
}

func (c *ArrayContainsCondition) Expr() (string, error) {
	v, err := literal(c.Value)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", c.Field, err)
	}
	return fmt.Sprintf("array_contains(%s, %s)", c.Field, v), nil
}

// ── Literals ─────────────────────────────────────────────────────────────────

// literal renders a value as an expression literal. Strings are double
// quoted with backslash escapes.
func literal(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	}
	if i, ok := asInt64(v); ok {
		return strconv.FormatInt(i, 10), nil
	}
	return "", fmt.Errorf("%w: %T in filter", ErrUnsupportedValue, v)
}

// literalList renders a list literal. Values must share one kind: strings,
// numbers or booleans.
func literalList(values []any) (string, error) {
	parts := make([]string, len(values))
	for i, v := range values {
		if i > 0 && literalKind(v) != literalKind(values[0]) {
			return "", fmt.Errorf("%w: mixed %T and %T in list", ErrUnsupportedValue, values[0], v)
		}
		s, err := literal(v)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

func literalKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case float32, float64:
		return "number"
	}
	if _, ok := asInt64(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
