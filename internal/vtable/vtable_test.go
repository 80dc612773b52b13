package vtable

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture mirrors the real page layout: a banner header row with
// rowspan/colspan, a component header row, then one row per environment.
const fixture = `<p>Deployed versions</p>
<table>
<tr><th rowspan="2">Environment</th><th colspan="3">Application Components</th></tr>
<tr><td>cpt1</td><td>cpt2</td><td>cpt3</td></tr>
<tr><th>DEV</th><td><p>1.0.0</p></td><td><p></p></td><td><p></p></td></tr>
<tr><th>PROD</th><td><p>0.9.0</p></td><td><p>2.0.0</p></td><td><p></p></td></tr>
</table>`

var (
	components   = []string{"cpt1", "cpt2", "cpt3"}
	environments = []string{"DEV", "PROD"}
)

// snapshot captures every cell's text keyed by "env/component".
func snapshot(t *testing.T, tbl *Table) map[string]string {
	t.Helper()
	cells := make(map[string]string)
	for _, env := range environments {
		for _, cpt := range components {
			text, err := tbl.CellText(cpt, env)
			require.NoError(t, err)
			cells[env+"/"+cpt] = text
		}
	}
	return cells
}

func TestParse_NoTable(t *testing.T) {
	_, err := Parse("<p>nothing tabular here</p>")
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestSetVersion(t *testing.T) {
	tbl, err := Parse(fixture)
	require.NoError(t, err)

	require.NoError(t, tbl.SetVersion("cpt1", "DEV", "2.3.4"))

	got, err := tbl.CellText("cpt1", "DEV")
	require.NoError(t, err)
	assert.Equal(t, "2.3.4", got)
}

func TestSetVersion_OnlyTargetCellChanges(t *testing.T) {
	tbl, err := Parse(fixture)
	require.NoError(t, err)

	before := snapshot(t, tbl)
	require.NoError(t, tbl.SetVersion("cpt2", "PROD", "5.0.0"))
	after := snapshot(t, tbl)

	want := make(map[string]string, len(before))
	for k, v := range before {
		want[k] = v
	}
	want["PROD/cpt2"] = "5.0.0"

	if diff := cmp.Diff(want, after); diff != "" {
		t.Errorf("cell mismatch (-want +got):\n%s", diff)
	}
}

func TestSetVersion_CaseInsensitiveLookup(t *testing.T) {
	tbl, err := Parse(fixture)
	require.NoError(t, err)

	require.NoError(t, tbl.SetVersion("CPT1", "dev", "3.0.0"))

	got, err := tbl.CellText("cpt1", "DEV")
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", got)
}

func TestSetVersion_Idempotent(t *testing.T) {
	tbl, err := Parse(fixture)
	require.NoError(t, err)

	require.NoError(t, tbl.SetVersion("cpt1", "DEV", "2.3.4"))
	first := snapshot(t, tbl)
	require.NoError(t, tbl.SetVersion("cpt1", "DEV", "2.3.4"))
	second := snapshot(t, tbl)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("rerun changed cells (-first +second):\n%s", diff)
	}
}

func TestSetVersion_NotFound(t *testing.T) {
	tests := []struct {
		name        string
		component   string
		environment string
		wantErr     error
	}{
		{"missing component", "cpt_missing", "DEV", ErrComponentNotFound},
		{"missing environment", "cpt1", "STAGING", ErrEnvironmentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Parse(fixture)
			require.NoError(t, err)

			err = tbl.SetVersion(tt.component, tt.environment, "2.3.4")
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = tbl.CellText(tt.component, tt.environment)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSetVersion_CellWithoutParagraph(t *testing.T) {
	bare := `<table>
<tr><th rowspan="2">Environment</th><th>Components</th></tr>
<tr><td>cpt1</td></tr>
<tr><th>DEV</th><td>1.0.0</td></tr>
</table>`

	tbl, err := Parse(bare)
	require.NoError(t, err)

	require.NoError(t, tbl.SetVersion("cpt1", "DEV", "2.0.0"))

	got, err := tbl.CellText("cpt1", "DEV")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", got)

	out, err := tbl.Render()
	require.NoError(t, err)
	assert.Contains(t, out, "<p>2.0.0</p>")
}

func TestRender_PreservesSurroundingContent(t *testing.T) {
	tbl, err := Parse(fixture)
	require.NoError(t, err)

	require.NoError(t, tbl.SetVersion("cpt3", "DEV", "0.1.0"))

	out, err := tbl.Render()
	require.NoError(t, err)

	assert.Contains(t, out, "<p>Deployed versions</p>")
	assert.Contains(t, out, `<th rowspan="2">Environment</th>`)
	assert.Contains(t, out, `<th colspan="3">Application Components</th>`)
	assert.Contains(t, out, "<p>0.1.0</p>")
	// Fragment rendering must not grow a document wrapper.
	assert.False(t, strings.Contains(out, "<html>"), "rendered body grew an <html> wrapper")
	assert.False(t, strings.Contains(out, "<body>"), "rendered body grew a <body> wrapper")
}

func TestLocate_EnvironmentRowWithTdLabel(t *testing.T) {
	// Some pages use td instead of th for the environment label; the
	// label cell must still not count as a version cell.
	tdLabel := `<table>
<tr><th rowspan="2">Environment</th><th colspan="2">Components</th></tr>
<tr><td>api</td><td>worker</td></tr>
<tr><td>QA</td><td><p>1.1.0</p></td><td><p>1.2.0</p></td></tr>
</table>`

	tbl, err := Parse(tdLabel)
	require.NoError(t, err)

	got, err := tbl.CellText("api", "QA")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got)

	got, err = tbl.CellText("worker", "qa")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", got)
}

func TestLocate_ErrorMessagesNameTheMissingLabel(t *testing.T) {
	tbl, err := Parse(fixture)
	require.NoError(t, err)

	_, err = tbl.CellText("cpt_missing", "DEV")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpt_missing")

	_, err = tbl.CellText("cpt1", "STAGING")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STAGING")
}

func TestLocate_RowShorterThanComponentColumn(t *testing.T) {
	short := `<table>
<tr><th rowspan="2">Environment</th><th colspan="2">Components</th></tr>
<tr><td>api</td><td>worker</td></tr>
<tr><th>DEV</th><td><p>1.0.0</p></td></tr>
</table>`

	tbl, err := Parse(short)
	require.NoError(t, err)

	_, err = tbl.CellText("worker", "DEV")
	assert.True(t, errors.Is(err, ErrComponentNotFound))
}
