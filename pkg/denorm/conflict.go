// SPDX-License-Identifier: Apache-2.0

package denorm

import "fmt"

// conflictResolver implements the __N suffix scheme: distinct source keys
// that sanitize to the same base name are assigned __1, __2, ... in the
// order they are first seen. The same source key always resolves to the
// same final name within one resolver's lifetime, which is what makes a
// single denormalization pass deterministic given a stable field order.
type conflictResolver struct {
	firstClaimant map[string]string // base name -> first source key to claim it
	suffixCount   map[string]int    // base name -> suffixes handed out so far
	resolved      map[string]string // source key -> final name
}

func newConflictResolver() *conflictResolver {
	return &conflictResolver{
		firstClaimant: make(map[string]string),
		suffixCount:   make(map[string]int),
		resolved:      make(map[string]string),
	}
}

func (r *conflictResolver) resolve(sourceKey, base string) string {
	if final, ok := r.resolved[sourceKey]; ok {
		return final
	}

	claimant, claimed := r.firstClaimant[base]
	if !claimed || claimant == sourceKey {
		r.firstClaimant[base] = sourceKey
		r.resolved[sourceKey] = base
		return base
	}

	r.suffixCount[base]++
	final := fmt.Sprintf("%s__%d", base, r.suffixCount[base])
	r.resolved[sourceKey] = final
	return final
}
