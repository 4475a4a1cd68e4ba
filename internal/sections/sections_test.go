package sections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutputs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		out1 string
		out2 string
	}{
		{
			name: "both markers",
			raw:  "preamble\n=== OUTPUT 1: Estimate ===\nINR 120/unit\n=== OUTPUT 2: Reasoning ===\nsteel index\n",
			out1: "=== OUTPUT 1: Estimate ===\nINR 120/unit",
			out2: "=== OUTPUT 2: Reasoning ===\nsteel index",
		},
		{
			name: "heading variants",
			raw:  "## output_1\nA\n**Output-2**\nB",
			out1: "## output_1\nA",
			out2: "**Output-2**\nB",
		},
		{
			name: "marker 2 missing after truncation",
			raw:  "# OUTPUT 1\npartial estimate",
			out1: "# OUTPUT 1\npartial estimate",
			out2: "",
		},
		{
			name: "only marker 2",
			raw:  "OUTPUT 2: foo",
			out1: "",
			out2: "OUTPUT 2: foo",
		},
		{
			name: "text before marker 2 becomes the first section",
			raw:  "estimate text\n\nOUTPUT 2\nbriefing",
			out1: "estimate text",
			out2: "OUTPUT 2\nbriefing",
		},
		{
			name: "no markers",
			raw:  "  just a blob of text  ",
			out1: "",
			out2: "just a blob of text",
		},
		{
			name: "marker word inside a sentence is not a marker",
			raw:  "see OUTPUT 1 below",
			out1: "",
			out2: "see OUTPUT 1 below",
		},
		{
			name: "markers in reverse order keep the whole text",
			raw:  "OUTPUT 2 first\nOUTPUT 1 later",
			out1: "",
			out2: "OUTPUT 2 first\nOUTPUT 1 later",
		},
		{
			name: "marker 2 on both sides of marker 1 splits at the later one",
			raw:  "OUTPUT 2 draft\nOUTPUT 1\nfinal\nOUTPUT 2\nnotes",
			out1: "OUTPUT 1\nfinal",
			out2: "OUTPUT 2\nnotes",
		},
		{name: "empty", raw: "", out1: "", out2: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o1, o2 := ParseOutputs(tt.raw)
			assert.Equal(t, tt.out1, o1)
			assert.Equal(t, tt.out2, o2)
		})
	}
}

func TestOutputsNeverPanics(t *testing.T) {
	inputs := []string{"\x00", "OUTPUT", "OUTPUT 1", "OUTPUT 2", strings.Repeat("OUTPUT 1\n", 100), "\xff\xfe OUTPUT 2"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Outputs(in) })
	}
	assert.Equal(t, map[string]string{Output1: "", Output2: "x"}, Outputs("x"))
}

func TestParseTags(t *testing.T) {
	raw := `<Summary>
  Bracket assembly, 500 pcs
</Summary>
<scope >laser cut, bend, powder coat</scope>
<cost>INR 85-110</cost>
<cost>second cost ignored</cost>`

	got := ParseTags(raw, SummaryTags...)
	assert.Equal(t, "Bracket assembly, 500 pcs", got["summary"])
	assert.Equal(t, "laser cut, bend, powder coat", got["scope"])
	assert.Equal(t, "INR 85-110", got["cost"])
	assert.Equal(t, "", got["quality"])
	assert.Equal(t, "", got["timeline"])

	assert.Equal(t, "", Tag("<summary>unterminated", "summary"))
	assert.Equal(t, "", Tag("anything", ""))
	assert.Equal(t, "x", Tag("<a.b>x</a.b>", "a.b"))
}
