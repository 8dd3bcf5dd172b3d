package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{
			name: "bare object",
			raw:  `{"diagnosis":"rust","confidence":0.8}`,
			want: `{"diagnosis":"rust","confidence":0.8}`,
			ok:   true,
		},
		{
			name: "prose around object",
			raw:  "Sure! Here is my analysis:\n{\"diagnosis\":\"rust\"}\nLet me know if you need more.",
			want: `{"diagnosis":"rust"}`,
			ok:   true,
		},
		{
			name: "fenced with language tag",
			raw:  "```json\n{\"diagnosis\":\"mildew\"}\n```",
			want: `{"diagnosis":"mildew"}`,
			ok:   true,
		},
		{
			name: "fenced without tag",
			raw:  "```\n{\"a\":1}\n```",
			want: `{"a":1}`,
			ok:   true,
		},
		{
			name: "prose fence does not shadow the object after it",
			raw:  "```\nnote: an unmatched { brace\n```\nResult: {\"diagnosis\":\"rust\"}",
			want: `{"diagnosis":"rust"}`,
			ok:   true,
		},
		{
			name: "balanced garbage span skipped for a valid object",
			raw:  `use {caution} here: {"diagnosis":"rust"}`,
			want: `{"diagnosis":"rust"}`,
			ok:   true,
		},
		{
			name: "nested braces inside strings",
			raw:  `result: {"note":"use {caution}","n":1} done`,
			want: `{"note":"use {caution}","n":1}`,
			ok:   true,
		},
		{
			name: "truncated object handed through",
			raw:  `{"diagnosis":"rust","evidence":["spots"`,
			want: `{"diagnosis":"rust","evidence":["spots"`,
			ok:   true,
		},
		{
			name: "no braces at all",
			raw:  "I cannot produce a diagnosis for this case.",
			ok:   false,
		},
		{
			name: "empty input",
			raw:  "   \n  ",
			ok:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractObject(tc.raw)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestRepairObject(t *testing.T) {
	cases := []struct {
		name string
		span string
		want string
		ok   bool
	}{
		{
			name: "already valid",
			span: `{"a":1}`,
			want: `{"a":1}`,
			ok:   true,
		},
		{
			name: "trailing comma",
			span: `{"a":1,"b":[1,2,],}`,
			want: `{"a":1,"b":[1,2]}`,
			ok:   true,
		},
		{
			name: "single quotes",
			span: `{'diagnosis': 'spider mites'}`,
			want: `{"diagnosis": "spider mites"}`,
			ok:   true,
		},
		{
			name: "smart quotes",
			span: `{“diagnosis”: “rust”}`,
			want: `{"diagnosis": "rust"}`,
			ok:   true,
		},
		{
			name: "truncated mid array",
			span: `{"diagnosis":"rust","evidence":["spots","pustules"`,
			want: `{"diagnosis":"rust","evidence":["spots","pustules"]}`,
			ok:   true,
		},
		{
			name: "truncated mid string",
			span: `{"diagnosis":"powdery mil`,
			want: `{"diagnosis":"powdery mil"}`,
			ok:   true,
		},
		{
			name: "hopeless",
			span: `{{{:::`,
			ok:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := RepairObject(tc.span)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
