package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"1,234", 1234},
		{"12k", 12000},
		{"1.2k", 1200},
		{"3m", 3000000},
		{"3.4m", 3400000},
		{"0", 0},
		{"999", 999},
		{"10.5k", 10500},
		{"1,234,567", 1234567},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := Number(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}

func TestNumberInvalid(t *testing.T) {
	for _, input := range []string{"", "likes", "views", "1.2.3x"} {
		t.Run(input, func(t *testing.T) {
			_, err := Number(input)
			assert.Error(t, err)
		})
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"two tags", "Great day #sunset #ocean!", []string{"sunset", "ocean"}},
		{"empty", "", []string{}},
		{"no tags", "just a caption", []string{}},
		{"mixed case", "#Sunset #OCEAN", []string{"sunset", "ocean"}},
		{"duplicates kept", "#go #go", []string{"go", "go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tags(tt.input))
		})
	}
}

func TestPostCode(t *testing.T) {
	code, ok := PostCode("https://www.instagram.com/p/CXyz12_-3/")
	require.True(t, ok)
	assert.Equal(t, "CXyz12_-3", code)

	_, ok = PostCode("/accounts/login/")
	assert.False(t, ok)
}

func TestLocationCode(t *testing.T) {
	code, ok := LocationCode("/explore/locations/212988663/new-york-new-york/")
	require.True(t, ok)
	assert.Equal(t, "212988663", code)

	_, ok = LocationCode("/explore/tags/sunset/")
	assert.False(t, ok)
}

func TestSplitLocationName(t *testing.T) {
	minor, major := SplitLocationName("Brooklyn, New York")
	assert.Equal(t, "Brooklyn", minor)
	assert.Equal(t, "New York", major)

	minor, major = SplitLocationName("Reykjavik")
	assert.Equal(t, "Reykjavik", minor)
	assert.Equal(t, "", major)
}
