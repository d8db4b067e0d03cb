//go:build tools

package tools

// Pins the goose CLI so `go run github.com/pressly/goose/v3/cmd/goose` can
// inspect internal/adapters/postgres/migrations with the module's version.
import (
	_ "github.com/pressly/goose/v3/cmd/goose"
)
