package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// canonicalVersion prefixes every canonical form; bump it when the encoding changes
// so keys derived by older builds can never collide with new ones.
const canonicalVersion = "plan/v1"

// Canonical returns the normalized text form of the plan used for cache keys.
// Filters are sorted and de-duplicated, set values and projected columns are
// treated as sets, and values carry a type marker so 1 and "1" differ.
func (p Plan) Canonical() []byte {
	var b strings.Builder

	b.WriteString(canonicalVersion)
	b.WriteString("\nmode=")
	b.WriteString(p.Mode.String())

	for _, line := range canonicalFilters(p.Filters) {
		b.WriteString("\nfilter=")
		b.WriteString(line)
	}

	b.WriteString("\norder=")
	if p.Order == nil {
		b.WriteString("natural")
	} else {
		b.WriteString(strconv.Quote(p.Order.Field))
		b.WriteByte(' ')
		b.WriteString(p.Order.Direction.String())
	}

	b.WriteString("\ncolumns=")
	if p.AllColumns() {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(quotedSet(p.Columns), ","))
	}

	b.WriteString("\nlimit=")
	b.WriteString(strconv.Itoa(p.Limit))
	b.WriteByte('\n')

	return []byte(b.String())
}

func canonicalFilters(filters []Filter) []string {
	lines := make([]string, 0, len(filters))
	for _, f := range filters {
		var value string
		if f.Mode == InSet {
			encoded := make([]string, 0, len(f.Values))
			for _, v := range f.Values {
				encoded = append(encoded, encodeValue(v))
			}
			value = "[" + strings.Join(sortedSet(encoded), ",") + "]"
		} else {
			value = encodeValue(f.Value)
		}
		lines = append(lines, strconv.Quote(f.Field)+" "+f.Mode.String()+" "+value)
	}
	return sortedSet(lines)
}

func quotedSet(items []string) []string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return sortedSet(quoted)
}

// sortedSet sorts items and drops duplicates in place.
func sortedSet(items []string) []string {
	sort.Strings(items)
	out := items[:0]
	for i, item := range items {
		if i > 0 && item == items[i-1] {
			continue
		}
		out = append(out, item)
	}
	return out
}

func encodeValue(v any) string {
	rv, ok := indirect(reflect.ValueOf(v))
	if !ok {
		return "null"
	}

	switch n := normalize(rv).(type) {
	case nil:
		return "null"
	case string:
		return "s:" + strconv.Quote(n)
	case bool:
		return "b:" + strconv.FormatBool(n)
	case int64:
		return "i:" + strconv.FormatInt(n, 10)
	case uint64:
		return "u:" + strconv.FormatUint(n, 10)
	case float64:
		return "f:" + strconv.FormatFloat(n, 'g', -1, 64)
	case time.Time:
		return "t:" + n.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return "x:" + rv.Type().String() + ":" + strconv.Quote(n.String())
	default:
		data, err := json.Marshal(n)
		if err != nil {
			return "v:" + rv.Type().String() + ":" + strconv.Quote(fmt.Sprintf("%#v", n))
		}
		return "j:" + rv.Type().String() + ":" + string(data)
	}
}
