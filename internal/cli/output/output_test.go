package output_test

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/leapstack-labs/leapsql/internal/cli/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newRenderer(mode output.OutputMode, isTTY bool) (*output.Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return output.NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want output.OutputMode
	}{
		{"json", output.ModeJSON},
		{"YAML", output.ModeYAML},
		{" table ", output.ModeTable},
		{"text", output.ModeText},
		{"", output.ModeAuto},
		{"markdown", output.ModeAuto},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, output.Mode(tt.in), tt.in)
	}
}

func TestEffectiveMode(t *testing.T) {
	r, _, _ := newRenderer(output.ModeAuto, true)
	assert.Equal(t, output.ModeTable, r.EffectiveMode())

	r, _, _ = newRenderer(output.ModeAuto, false)
	assert.Equal(t, output.ModeJSON, r.EffectiveMode())

	r, _, _ = newRenderer(output.ModeYAML, true)
	assert.Equal(t, output.ModeYAML, r.EffectiveMode())
}

func TestData(t *testing.T) {
	value := map[string]any{"view_name": "v", "columns": []string{"a"}}

	r, out, _ := newRenderer(output.ModeJSON, false)
	handled, err := r.Data(value)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.JSONEq(t, `{"view_name":"v","columns":["a"]}`, out.String())

	r, out, _ = newRenderer(output.ModeYAML, false)
	handled, err = r.Data(value)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "columns:\n  - a\nview_name: v\n", out.String())

	r, out, _ = newRenderer(output.ModeText, false)
	handled, err = r.Data(value)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, out.String())
}

func TestTable(t *testing.T) {
	r, out, _ := newRenderer(output.ModeTable, false)
	r.Table([]string{"column", "lineage"}, [][]string{{"x", "t1.x"}, {"y", "t2.y"}})

	text := out.String()
	assert.Contains(t, text, "COLUMN")
	assert.Contains(t, text, "t2.y")
	assert.False(t, ansiPattern.MatchString(text))

	out.Reset()
	r.Table([]string{"a"}, nil)
	assert.Equal(t, "(0 rows)\n", out.String())
}

func TestNoANSIWithoutTerminal(t *testing.T) {
	r, out, errOut := newRenderer(output.ModeText, false)
	r.Println(r.Styles().Header1.Render("Lineage"))
	r.Warnf("column %s is ambiguous", "id")
	r.Successf("done")

	assert.Equal(t, "Lineage\n", out.String())
	assert.Equal(t, "warning: column id is ambiguous\ndone\n", errOut.String())
	assert.False(t, ansiPattern.MatchString(errOut.String()))
}
