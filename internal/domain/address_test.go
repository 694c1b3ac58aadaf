package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Address
		wantErr bool
	}{
		{
			name:  "lower case passthrough",
			input: "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
			want:  "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
		},
		{
			name:  "checksum case normalized",
			input: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
			want:  "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
		},
		{
			name:  "missing prefix accepted",
			input: "bb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
			want:  "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c ",
			want:  "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
		},
		{name: "too short", input: "0x1234", wantErr: true},
		{name: "too long", input: "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c00", wantErr: true},
		{name: "non-hex characters", input: "0xzz4cdb9cbd36b01bd1cbaebf2de08d9173bc095c", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddressEqual(t *testing.T) {
	a := Address("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c")
	b := Address("0xBB4CDB9CBD36B01BD1CBAEBF2DE08D9173BC095C")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(ZeroAddress))
}

func TestAddressIsZero(t *testing.T) {
	assert.True(t, ZeroAddress.IsZero())
	assert.False(t, Address("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c").IsZero())
}

func TestAddressShort(t *testing.T) {
	a := Address("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c")
	assert.Equal(t, "0xbb4c..095c", a.Short())
	assert.Equal(t, "0x12", Address("0x12").Short())
}
