package cmd

import (
	"strings"

	"github.com/stackconsult/interfaceAgent/pkg/persistence"
	"github.com/stackconsult/interfaceAgent/pkg/persistence/file"
)

var supportedPersistenceProviders = []string{"file"}

// NewPersistence creates a persistence layer from a database URL. Only the
// file provider is currently implemented; unrecognized schemes fall back to it.
func NewPersistence(databaseURL string) persistence.Persistence {
	provider := parsePersistenceProvider(databaseURL)

	switch provider {
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
