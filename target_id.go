// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

package trackcore

import "github.com/google/uuid"

// TargetID is an opaque diagnostic tag assigned to a tracking-queue slot
// at construction time. It has no bearing on association or filter
// math — it exists purely so a consumer's logs can follow one slot's
// lifecycle across clears and re-acquisitions without relying on the
// slot's position in the pool, which is reused.
type TargetID uuid.UUID

// NewTargetID generates a fresh random target tag.
func NewTargetID() TargetID {
	return TargetID(uuid.New())
}

func (id TargetID) String() string {
	return uuid.UUID(id).String()
}
