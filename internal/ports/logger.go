package ports

import "github.com/bft-labs/groupcast/pkg/log"

// Logger provides structured logging capabilities.
type Logger = log.Logger

// Field represents a key-value pair for structured logging.
type Field = log.Field

// Field constructors, re-exported so internal packages depend on ports only.
var (
	String   = log.String
	Int      = log.Int
	Int32    = log.Int32
	Int64    = log.Int64
	Uint64   = log.Uint64
	Float64  = log.Float64
	Bool     = log.Bool
	Duration = log.Duration
	Err      = log.Err
	Any      = log.Any
)
