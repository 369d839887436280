package core

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/melih-ucgun/vigil/internal/status"
)

// Flatten walks v and returns one gron-style line per non-zero leaf:
//
//	.apps['database'].app_status.current = 'active'
//	.apps['database'].relations['db'][0].scope = 'global'
//
// Struct fields are named by their json tag and map keys are visited in
// sorted order. Zero-valued fields are skipped unless they are required,
// i.e. carry a yaml tag without omitempty, so `exposed = false` and
// `charm_rev = 0` still appear.
func Flatten(v any) []string {
	var lines []string
	flatten(reflect.ValueOf(v), "", &lines)
	return lines
}

func flatten(v reflect.Value, prefix string, lines *[]string) {
	switch v.Kind() {
	case reflect.Invalid:
		return
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return
		}
		flatten(v.Elem(), prefix, lines)
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			fv := v.Field(i)
			if fv.IsZero() && optional(field) {
				continue
			}
			flatten(fv, prefix+"."+fieldName(field), lines)
		}
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			flatten(v.MapIndex(k), prefix+"["+quote(fmt.Sprint(k.Interface()))+"]", lines)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			flatten(v.Index(i), prefix+"["+strconv.Itoa(i)+"]", lines)
		}
	default:
		*lines = append(*lines, prefix+" = "+scalar(v))
	}
}

func optional(f reflect.StructField) bool {
	tag, ok := f.Tag.Lookup("yaml")
	if !ok {
		return true
	}
	_, opts, _ := strings.Cut(tag, ",")
	return strings.Contains(opts, "omitempty")
}

func fieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

var quoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\t", `\t`)

func quote(s string) string {
	return "'" + quoter.Replace(s) + "'"
}

func scalar(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return quote(v.String())
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	}
	return fmt.Sprint(v.Interface())
}

// DiffLines compares two line sequences and returns the lines removed from
// oldLines prefixed with "- " and the lines added in newLines prefixed with
// "+ ". Unchanged lines are omitted.
func DiffLines(oldLines, newLines []string) []string {
	if slices.Equal(oldLines, newLines) {
		return nil
	}

	dmp := diffmatchpatch.New()
	// No deadline: the edit script must be minimal, not just valid.
	dmp.DiffTimeout = 0

	a, b, lineArray := dmp.DiffLinesToChars(joinLines(oldLines), joinLines(newLines))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var out []string
	for _, d := range diffs {
		var marker string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			marker = "- "
		case diffmatchpatch.DiffInsert:
			marker = "+ "
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out = append(out, marker+line)
		}
	}
	return out
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// StatusLineOK reports whether a flattened status line should take part in
// change detection. The controller heartbeat and every "since" timestamp
// change on each poll and carry no information.
func StatusLineOK(line string) bool {
	field, _, _ := strings.Cut(line, " = ")
	if field == ".controller.timestamp" {
		return false
	}
	return !strings.HasSuffix(field, ".since")
}

// FlattenStatus flattens s and drops the lines rejected by StatusLineOK.
// A nil status flattens to no lines.
func FlattenStatus(s *status.Status) []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, line := range Flatten(s) {
		if StatusLineOK(line) {
			out = append(out, line)
		}
	}
	return out
}

// StatusDiff returns the filtered line diff between two snapshots. prev may
// be nil, in which case every line of cur is reported as added.
func StatusDiff(prev, cur *status.Status) []string {
	return DiffLines(FlattenStatus(prev), FlattenStatus(cur))
}
