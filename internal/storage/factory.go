package storage

import "fmt"

const (
	DefaultStoreKind  = "memory"
	DefaultSQLitePath = "shapemap.db"
)

// NewStore builds the checkpoint store named by kind. An empty kind selects
// DefaultStoreKind and an empty sqlitePath selects DefaultSQLitePath.
func NewStore(kind, sqlitePath string) (Store, error) {
	if kind == "" {
		kind = DefaultStoreKind
	}
	switch kind {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if sqlitePath == "" {
			sqlitePath = DefaultSQLitePath
		}
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q (want memory or sqlite)", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
