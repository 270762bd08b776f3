package ports

import "github.com/bft-labs/statusled/pkg/log"

// Logger is the structured logger used across internal packages.
type Logger = log.Logger

// Field represents a structured log field.
type Field = log.Field
