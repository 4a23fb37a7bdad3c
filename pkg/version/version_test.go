package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		input     string
		expectErr bool
	}{
		{input: "1.0"},
		{input: "v5.2.0"},
		{input: "19.16.39"},
		{input: "20.12.46.5"},
		{input: "1.3.0-dev.4"},
		{input: "not-a-version", expectErr: true},
		{input: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			v, err := Parse(tc.input)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.input, v.String())
		})
	}
}

func TestCompare(t *testing.T) {
	testCases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.2", -1},
		{"1.10", "1.9", 1},
		{"v2.0.0", "2.0", 0},
		{"1.3.0-dev.4", "1.3.0", -1},
		{"20.12.46.5", "20.12.46.10", -1},
		{"20.12.46", "20.12.46.1", -1},
		{"1.0.0-foo", "1.0.0-xyz", -1},
		{"9.0.0-foo", "0.1.0.1", -1},
		{"0.1.0.1", "9.0.0-foo", 1},
	}

	for _, tc := range testCases {
		t.Run(tc.a+"_vs_"+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.want, MustParse(tc.a).Compare(MustParse(tc.b)))
		})
	}
}

func TestSort(t *testing.T) {
	got := Sort([]string{"1.2", "latest", "1.10", "1.0", "1.3.0-beta.1"})
	assert.Equal(t, []string{"1.0", "1.2", "1.3.0-beta.1", "1.10"}, got)
}

func TestSortMixedSchemes(t *testing.T) {
	input := []string{"20.12.46.5", "1.0.0-xyz", "2.0", "1.0.0-foo", "20.12.46.10"}
	want := []string{"1.0.0-foo", "1.0.0-xyz", "2.0", "20.12.46.5", "20.12.46.10"}
	assert.Equal(t, want, Sort(input))

	reversed := make([]string, len(input))
	for i, s := range input {
		reversed[len(input)-1-i] = s
	}
	assert.Equal(t, want, Sort(reversed))
}

func TestMax(t *testing.T) {
	v, ok := Max([]string{"1.0", "2.0", "1.5"})
	assert.True(t, ok)
	assert.Equal(t, "2.0", v)

	_, ok = Max([]string{"nightly"})
	assert.False(t, ok)
}
