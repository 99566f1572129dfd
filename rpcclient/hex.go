// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidQuantity is returned when a hex encoded quantity is malformed.
var ErrInvalidQuantity = errors.New("invalid hex quantity")

// EncodeQuantity returns v as a 0x prefixed hex quantity without leading
// zeros.
func EncodeQuantity(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

// quantityDigits strips the 0x prefix of s and checks the digits.
func quantityDigits(s string) (string, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", errors.Wrapf(ErrInvalidQuantity, "%q lacks the 0x prefix", s)
	}
	digits := s[2:]
	if digits == "" {
		return "", errors.Wrapf(ErrInvalidQuantity, "%q has no digits", s)
	}
	return digits, nil
}

// DecodeQuantity parses a 0x prefixed hex quantity.
func DecodeQuantity(s string) (uint64, error) {
	digits, err := quantityDigits(s)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidQuantity, "%q: %v", s, err)
	}
	return v, nil
}

// DecodeBig parses a 0x prefixed hex quantity of arbitrary size.
func DecodeBig(s string) (*big.Int, error) {
	digits, err := quantityDigits(s)
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(digits, 16)
	if !ok || v.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidQuantity, "%q", s)
	}
	return v, nil
}
