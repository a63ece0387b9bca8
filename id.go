package cascade

import "github.com/xraph/cascade/id"

// ID is the primary identifier type for all Cascade entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
