package realtime

import (
	"fmt"
	"strconv"
	"strings"

	"landscape-job-service/internal/entity"
)

type FilterOp string

const (
	OpEq     FilterOp = "eq"
	OpNeq    FilterOp = "neq"
	OpLt     FilterOp = "lt"
	OpLte    FilterOp = "lte"
	OpGt     FilterOp = "gt"
	OpGte    FilterOp = "gte"
	OpIn     FilterOp = "in"
	OpIsNull FilterOp = "is"
)

// Filter is a single-column row predicate written as "column=op.value",
// e.g. "landscaper_id=eq.42", "status=in.(assigned,active)", "approved_by=is.null".
type Filter struct {
	Column string
	Op     FilterOp
	Values []string
}

func ParseFilter(expr string) (Filter, error) {
	col, rest, ok := strings.Cut(expr, "=")
	if !ok || col == "" {
		return Filter{}, fmt.Errorf("filter %q: expected column=op.value", expr)
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok {
		return Filter{}, fmt.Errorf("filter %q: expected op.value", expr)
	}

	f := Filter{Column: strings.TrimSpace(col), Op: FilterOp(op)}
	switch f.Op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		f.Values = []string{value}
	case OpIn:
		if !strings.HasPrefix(value, "(") || !strings.HasSuffix(value, ")") {
			return Filter{}, fmt.Errorf("filter %q: in expects (a,b,...)", expr)
		}
		for _, v := range strings.Split(value[1:len(value)-1], ",") {
			if v = strings.TrimSpace(v); v != "" {
				f.Values = append(f.Values, v)
			}
		}
		if len(f.Values) == 0 {
			return Filter{}, fmt.Errorf("filter %q: empty in list", expr)
		}
	case OpIsNull:
		if value != "null" {
			return Filter{}, fmt.Errorf("filter %q: only is.null is supported", expr)
		}
	default:
		return Filter{}, fmt.Errorf("filter %q: unknown operator %q", expr, op)
	}
	return f, nil
}

func (f Filter) String() string {
	switch f.Op {
	case OpIn:
		return f.Column + "=in.(" + strings.Join(f.Values, ",") + ")"
	case OpIsNull:
		return f.Column + "=is.null"
	default:
		return f.Column + "=" + string(f.Op) + "." + f.Values[0]
	}
}

// Match evaluates the filter against row. Absent columns compare as null.
func (f Filter) Match(row entity.Row) bool {
	v, present := row[f.Column]
	isNull := !present || v == nil

	if f.Op == OpIsNull {
		return isNull
	}
	if isNull {
		return false
	}

	s := fmt.Sprint(v)
	switch f.Op {
	case OpEq:
		return compare(s, f.Values[0]) == 0
	case OpNeq:
		return compare(s, f.Values[0]) != 0
	case OpLt:
		return compare(s, f.Values[0]) < 0
	case OpLte:
		return compare(s, f.Values[0]) <= 0
	case OpGt:
		return compare(s, f.Values[0]) > 0
	case OpGte:
		return compare(s, f.Values[0]) >= 0
	case OpIn:
		for _, want := range f.Values {
			if compare(s, want) == 0 {
				return true
			}
		}
	}
	return false
}

// compare orders numerically when both sides parse as numbers, else lexically.
func compare(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
