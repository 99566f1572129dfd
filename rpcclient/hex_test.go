// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeQuantity(t *testing.T) {
	assert.Equal(t, "0x0", EncodeQuantity(0))
	assert.Equal(t, "0x2a", EncodeQuantity(42))
	assert.Equal(t, "0xffffffffffffffff", EncodeQuantity(^uint64(0)))
}

func TestDecodeQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"0x0", 0, false},
		{"0x2a", 42, false},
		{"0X2A", 42, false},
		{"0x", 0, true},
		{"2a", 0, true},
		{"0xzz", 0, true},
		{"0x10000000000000000", 0, true},
	}

	for _, test := range tests {
		got, err := DecodeQuantity(test.in)
		if test.wantErr {
			require.Error(t, err, test.in)
			assert.True(t, errors.Is(err, ErrInvalidQuantity), test.in)
			continue
		}
		require.NoError(t, err, test.in)
		assert.Equal(t, test.want, got, test.in)
	}
}

func TestDecodeBig(t *testing.T) {
	v, err := DecodeBig("0x10000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551616", v.String())

	_, err = DecodeBig("0x-1")
	require.Error(t, err)

	_, err = DecodeBig("100")
	require.Error(t, err)
}
