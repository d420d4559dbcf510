package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyCode(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected ParsedKeyCode
		wantErr  bool
	}{
		{
			name:     "standard room key",
			raw:      "B2-0312-01",
			expected: ParsedKeyCode{Building: "B2", Room: "0312", Copy: 1},
		},
		{
			name:     "copy number without leading zero",
			raw:      "A-101-3",
			expected: ParsedKeyCode{Building: "A", Room: "101", Copy: 3},
		},
		{
			name:     "copy number omitted defaults to 1",
			raw:      "C1-0420",
			expected: ParsedKeyCode{Building: "C1", Room: "0420", Copy: 1},
		},
		{
			name:     "master key",
			raw:      "B2-MASTER-02",
			expected: ParsedKeyCode{Building: "B2", Room: "MASTER", Copy: 2},
		},
		{
			name:     "lowercase input is normalized",
			raw:      "b2-master-2",
			expected: ParsedKeyCode{Building: "B2", Room: "MASTER", Copy: 2},
		},
		{
			name:     "surrounding whitespace is tolerated",
			raw:      "  B2-0312-01  ",
			expected: ParsedKeyCode{Building: "B2", Room: "0312", Copy: 1},
		},
		{
			name:    "missing building",
			raw:     "0312-01",
			wantErr: true,
		},
		{
			name:    "room too short",
			raw:     "B2-3-01",
			wantErr: true,
		},
		{
			name:    "copy number zero",
			raw:     "B2-0312-00",
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseKeyCode(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestParsedKeyCodeMaster(t *testing.T) {
	master, err := ParseKeyCode("A-MASTER-1")
	require.NoError(t, err)
	assert.True(t, master.Master())

	room, err := ParseKeyCode("A-101-1")
	require.NoError(t, err)
	assert.False(t, room.Master())
}
