package llm_test

import (
	"testing"

	"github.com/DongHyun925/MediGraph/pkg/llm"
	flowerrors "github.com/DongHyun925/MediGraph/pkg/workflow/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type analysis struct {
	Symptoms     []string `json:"symptoms"`
	MissingInfo  []string `json:"missing_info"`
	IsSufficient bool     `json:"is_sufficient"`
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    analysis
	}{
		{
			name:    "plain",
			content: `{"symptoms":["두통"],"missing_info":[],"is_sufficient":true}`,
			want:    analysis{Symptoms: []string{"두통"}, MissingInfo: []string{}, IsSufficient: true},
		},
		{
			name:    "fenced",
			content: "```json\n{\"symptoms\":[\"fever\"],\"is_sufficient\":false}\n```",
			want:    analysis{Symptoms: []string{"fever"}},
		},
		{
			name:    "surrounding prose",
			content: "Here is the result:\n{\"symptoms\":[\"cough\"]}\nHope this helps.",
			want:    analysis{Symptoms: []string{"cough"}},
		},
		{
			name:    "trailing comma repaired",
			content: `{"symptoms":["nausea",],"is_sufficient":true,}`,
			want:    analysis{Symptoms: []string{"nausea"}, IsSufficient: true},
		},
		{
			name:    "single quotes repaired",
			content: `{'symptoms': ['rash']}`,
			want:    analysis{Symptoms: []string{"rash"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := llm.ParseJSON[analysis](tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSON_Failures(t *testing.T) {
	for _, content := range []string{"", "   ", "```json\n```"} {
		_, err := llm.ParseJSON[analysis](content)
		require.Error(t, err, "content %q", content)

		var parseErr *flowerrors.JSONParseError
		require.ErrorAs(t, err, &parseErr)
		assert.True(t, flowerrors.IsMalformed(err))
	}
}

func TestParseJSON_WrongShape(t *testing.T) {
	_, err := llm.ParseJSON[analysis](`{"symptoms": "not a list"}`)
	assert.True(t, flowerrors.IsMalformed(err))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, llm.StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "## Report", llm.StripFences("```\n## Report\n```"))
	assert.Equal(t, "plain", llm.StripFences("  plain "))
}
