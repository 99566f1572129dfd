// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package devaccounts holds the prefunded accounts of the development chain
// and derives execution addresses from secp256k1 secret keys.
package devaccounts

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// Account is a development account: its checksummed address and the secret
// key controlling it.
type Account struct {
	Name      string
	Address   string
	SecretKey string
}

// The development chain genesis funds these accounts.
var (
	Alith = Account{
		Name:      "Alith",
		Address:   "0xf24FF3a9CF04c71Dbc94D0b566f7A27B94566cac",
		SecretKey: "0x5fb92d6e98884f76de468fa3f6278f8807c48bebc13595d45af5bdc4da702133",
	}
	Baltathar = Account{
		Name:      "Baltathar",
		Address:   "0x3Cd0A705a2DC65e5b1E1205896BaA2be8A07c6e0",
		SecretKey: "0x8075991ce870b93a8870eca0c0f91913d12f47948ca0fd25b49c6fa7cdbeee8b",
	}
	Charleth = Account{
		Name:      "Charleth",
		Address:   "0x798d4Ba9baf0064Ec19eB4F0a1a45785ae9D6DFc",
		SecretKey: "0x0b6e18cafb6ed99687ec547bd28139cafdd2bffe70e6b688025de6b445aa5c5b",
	}
	Dorothy = Account{
		Name:      "Dorothy",
		Address:   "0x773539d4Ac0e786233D90A233654ccEE26a613D9",
		SecretKey: "0x39539ab1876910bbf3a223d84a29e28f1cb4e2e456503e7e91ed39b2e7223d68",
	}
)

// All returns the development accounts in genesis order.
func All() []Account {
	return []Account{Alith, Baltathar, Charleth, Dorothy}
}

// ErrInvalidKey is returned for malformed secret keys.
var ErrInvalidKey = errors.New("invalid secret key")

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// DeriveAddress returns the checksummed execution address controlled by
// the 0x prefixed hex secret key.
func DeriveAddress(secretKey string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(secretKey, "0x"))
	if err != nil {
		return "", errors.Wrap(ErrInvalidKey, err.Error())
	}
	if len(raw) != 32 {
		return "", errors.Wrapf(ErrInvalidKey, "got %d bytes, want 32", len(raw))
	}

	_, pub := btcec.PrivKeyFromBytes(raw)

	// The address is the last 20 bytes of the hash of the uncompressed
	// point without its 0x04 prefix.
	hash := keccak256(pub.SerializeUncompressed()[1:])
	return ChecksumAddress(hex.EncodeToString(hash[12:]))
}

// ChecksumAddress returns address with the mixed case checksum applied.
func ChecksumAddress(address string) (string, error) {
	lower := strings.ToLower(strings.TrimPrefix(address, "0x"))
	if len(lower) != 40 {
		return "", errors.Errorf("address %q is not 20 bytes", address)
	}
	if _, err := hex.DecodeString(lower); err != nil {
		return "", errors.Wrapf(err, "address %q", address)
	}

	hash := keccak256([]byte(lower))
	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out), nil
}

// Verify checks that the secret key of a controls its address.
func (a Account) Verify() error {
	derived, err := DeriveAddress(a.SecretKey)
	if err != nil {
		return errors.Wrapf(err, "account %s", a.Name)
	}
	if derived != a.Address {
		return errors.Errorf("account %s: key controls %s, not %s", a.Name,
			derived, a.Address)
	}
	return nil
}
