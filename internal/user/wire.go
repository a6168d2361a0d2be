package user

import (
	"github.com/google/wire"

	"crewlink/internal/database"
)

func ProvideRepository(db *database.Database) Repository {
	return NewRepository(db.DB)
}

var Set = wire.NewSet(ProvideRepository)
