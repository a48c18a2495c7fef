package stockledger

import "github.com/xraph/stockledger/id"

// ID is the TypeID used for bills, sales and events.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
