// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hash

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

type Sig [sha1.Size]byte

// Strings hashes a sequence of strings.
// Each piece is length-prefixed, so ["ab", "c"] and ["a", "bc"] hash differently.
func Strings(pieces ...string) Sig {
	h := sha1.New()
	for _, s := range pieces {
		fmt.Fprintf(h, "%d:", len(s))
		h.Write([]byte(s))
	}
	var sig Sig
	copy(sig[:], h.Sum(nil))
	return sig
}

func (sig Sig) String() string {
	return hex.EncodeToString(sig[:])
}
