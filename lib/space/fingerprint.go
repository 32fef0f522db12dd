// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// contractDomainKey separates contract fingerprints from any other
// BLAKE3 use of the same bytes. ASCII zero-padded to 32 bytes.
var contractDomainKey = [32]byte{
	'g', 'y', 'm', 'n', 'e', 't', '.', 's', 'p', 'a', 'c', 'e', '.',
	'c', 'o', 'n', 't', 'r', 'a', 'c', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint identifies an action/observation contract. Two
// contracts share a fingerprint exactly when their canonical
// descriptor texts are equal, so the value is stable across
// processes and independent of Dict key order.
func Fingerprint(action, observation Descriptor) string {
	hasher, err := blake3.NewKeyed(contractDomainKey[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes.
		panic("space: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write([]byte(action.String()))
	hasher.Write([]byte{0})
	hasher.Write([]byte(observation.String()))
	return hex.EncodeToString(hasher.Sum(nil)[:16])
}
