package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

var ErrNotFound = errors.New("record not found")

// Open returns the Repository for the named driver.
func Open(driver, dsn string, migrate bool) (Repository, error) {
	switch driver {
	case "postgres":
		repo, err := NewPgRepository(dsn)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := repo.MigrateUp(); err != nil {
				repo.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return repo, nil
	case "sqlite":
		return NewSqliteRepository(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func newId() string {
	return uuid.NewString()
}

// newChatId returns a short, url friendly chat id. Chat ids double as
// websocket room names so they are kept short.
func newChatId() string {
	id, err := shortid.Generate()
	if err != nil {
		return uuid.NewString()
	}
	return id
}
