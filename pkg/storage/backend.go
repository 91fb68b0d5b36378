package storage

import (
	"fmt"

	"github.com/nainya/grantdraft/pkg/version"
)

// Backend kinds accepted by Open
const (
	KindJSON    = "json"
	KindJournal = "journal"
	KindSQLite  = "sqlite"
)

// Kinds lists the supported backend kinds
var Kinds = []string{KindJSON, KindJournal, KindSQLite}

// Open returns the version backend of the given kind rooted at path
func Open(kind, path string) (version.Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: %s backend needs a path", kind)
	}

	switch kind {
	case KindJSON, "":
		return version.NewJSONFile(path), nil
	case KindJournal:
		j, err := OpenJournal(path)
		if err != nil {
			return nil, err
		}
		return j, nil
	case KindSQLite:
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", kind)
	}
}
