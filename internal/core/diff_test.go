package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih-ucgun/vigil/internal/status"
)

func loadStatus(t *testing.T, name string) *status.Status {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "status", "testdata", name))
	require.NoError(t, err)
	st, err := status.ParseJSON(data)
	require.NoError(t, err)
	return st
}

func TestFlattenMinimal(t *testing.T) {
	st := loadStatus(t, "minimal.json")

	assert.Equal(t, []string{
		".model.name = 'mdl'",
		".model.type = 'typ'",
		".model.controller = 'ctl'",
		".model.cloud = 'aws'",
		".model.version = '3.0.0'",
	}, Flatten(st))
}

func TestFlattenNested(t *testing.T) {
	st := loadStatus(t, "database_webapp.json")
	lines := Flatten(st)

	assert.Contains(t, lines, ".apps['database'].app_status.current = 'active'")
	assert.Contains(t, lines, ".apps['database'].relations['db'][0].related_app = 'webapp'")
	assert.Contains(t, lines, ".apps['database'].relations['db'][1].scope = 'foobar'")
	assert.Contains(t, lines, ".apps['database'].units['database/0'].leader = true")
	assert.Contains(t, lines, ".apps['database'].units['database/0'].open_ports[0] = '8080/tcp'")
	assert.Contains(t, lines, ".apps['database'].endpoint_bindings[''] = 'alpha'")
	assert.Contains(t, lines, ".controller.timestamp = '17:00:33+13:00'")

	// required fields are kept even when zero, optional ones are not
	assert.Contains(t, lines, ".apps['database'].exposed = false")
	assert.Contains(t, lines, ".apps['database'].charm_rev = 0")
	for _, line := range lines {
		assert.NotContains(t, line, ".can_upgrade_to")
		assert.NotContains(t, line, ".subordinate_to")
	}

	// database sorts before webapp
	first := strings.Index(strings.Join(lines, "\n"), ".apps['database']")
	second := strings.Index(strings.Join(lines, "\n"), ".apps['webapp']")
	assert.Less(t, first, second)
}

func TestFlattenQuoting(t *testing.T) {
	v := struct {
		Msg  string            `json:"msg"`
		Tags map[string]string `json:"tags"`
		N    int
	}{Msg: "it's\nhere", Tags: map[string]string{"a'b": "x"}, N: -1}

	assert.Equal(t, []string{
		`.msg = 'it\'s\nhere'`,
		`.tags['a\'b'] = 'x'`,
		`.N = -1`,
	}, Flatten(v))
}

func TestFlattenRequiredZeroFields(t *testing.T) {
	st := &status.Status{
		Apps: map[string]status.AppStatus{
			"a": {Charm: "ch", CharmOrigin: "charmhub", CharmName: "ch"},
		},
	}
	lines := Flatten(st)

	assert.Contains(t, lines, ".apps['a'].charm_rev = 0")
	assert.Contains(t, lines, ".apps['a'].exposed = false")
	assert.Contains(t, lines, ".model.name = ''")
	assert.NotContains(t, lines, ".apps['a'].scale = 0")
	assert.NotContains(t, lines, ".controller.timestamp = ''")
}

func TestDiffIdempotent(t *testing.T) {
	for _, name := range []string{"minimal.json", "snappass.json", "database_webapp.json", "errors.json"} {
		st := loadStatus(t, name)
		assert.Empty(t, DiffLines(Flatten(st), Flatten(st)), name)
		assert.Empty(t, StatusDiff(st, st), name)
	}
}

func TestDiffLines(t *testing.T) {
	old := []string{"a", "b", "c", "d"}
	cur := []string{"a", "x", "c", "d", "e"}

	assert.Equal(t, []string{"- b", "+ x", "+ e"}, DiffLines(old, cur))
	assert.Equal(t, []string{"+ a", "+ b"}, DiffLines(nil, []string{"a", "b"}))
	assert.Equal(t, []string{"- a"}, DiffLines([]string{"a"}, nil))
}

// apply replays a diff against old to check that it reconstructs cur.
func apply(old, diff []string) []string {
	removed := map[string]int{}
	var added []string
	for _, line := range diff {
		switch {
		case strings.HasPrefix(line, "- "):
			removed[line[2:]]++
		case strings.HasPrefix(line, "+ "):
			added = append(added, line[2:])
		}
	}
	var out []string
	for _, line := range old {
		if removed[line] > 0 {
			removed[line]--
			continue
		}
		out = append(out, line)
	}
	return append(out, added...)
}

func TestDiffReconstructsMultiset(t *testing.T) {
	old := []string{"a", "b", "c"}
	cur := []string{"b", "c", "d"}

	diff := DiffLines(old, cur)
	assert.Equal(t, []string{"- a", "+ d"}, diff)
	assert.ElementsMatch(t, cur, apply(old, diff))
}

func TestStatusDiff(t *testing.T) {
	prev := loadStatus(t, "database_webapp.json")
	cur := loadStatus(t, "database_webapp.json")

	app := cur.Apps["database"]
	app.AppStatus.Current = "waiting"
	app.Relations = map[string][]status.AppStatusRelation{
		"db": {{RelatedApp: "webapp", Interface: "dbi", Scope: "testy"}},
	}
	cur.Apps["database"] = app

	assert.Equal(t, []string{
		"- .apps['database'].app_status.current = 'active'",
		"+ .apps['database'].app_status.current = 'waiting'",
		"- .apps['database'].relations['db'][0].scope = 'global'",
		"- .apps['database'].relations['db'][1].related_app = 'dummy'",
		"- .apps['database'].relations['db'][1].interface = 'xyz'",
		"- .apps['database'].relations['db'][1].scope = 'foobar'",
		"+ .apps['database'].relations['db'][0].scope = 'testy'",
	}, StatusDiff(prev, cur))
}

func TestStatusDiffFromNothing(t *testing.T) {
	st := loadStatus(t, "minimal.json")

	diff := StatusDiff(nil, st)
	assert.Len(t, diff, 5)
	assert.Equal(t, "+ .model.name = 'mdl'", diff[0])
}

func TestStatusDiffIgnoresNoise(t *testing.T) {
	prev := loadStatus(t, "snappass.json")
	cur := loadStatus(t, "snappass.json")

	cur.Controller.Timestamp = "12:05:55+13:00"
	app := cur.Apps["snappass-test"]
	app.AppStatus.Since = "25 Feb 2025 09:00:00+13:00"
	unit := app.Units["snappass-test/0"]
	unit.JujuStatus.Since = "25 Feb 2025 09:00:01+13:00"
	app.Units = map[string]status.UnitStatus{"snappass-test/0": unit}
	cur.Apps["snappass-test"] = app

	assert.False(t, prev.Equal(cur))
	assert.Empty(t, StatusDiff(prev, cur))
}

func TestStatusLineOK(t *testing.T) {
	assert.False(t, StatusLineOK(".controller.timestamp = '12:00'"))
	assert.False(t, StatusLineOK(".apps['a'].app_status.since = 'x'"))
	assert.True(t, StatusLineOK(".apps['since'].charm = 'x'"))
	assert.True(t, StatusLineOK(".model.name = 'since'"))
}
