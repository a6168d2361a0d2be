package connection

import (
	"github.com/google/wire"

	"crewlink/config"
	"crewlink/internal/user"
	"crewlink/pkg/jwt"
)

func ProvideJWT(cfg *config.Config) *jwt.JWT {
	return jwt.NewJWT(cfg.JWTSecret, 3600)
}

func ProvideTokenVerifier(j *jwt.JWT, users user.Repository) *TokenVerifier {
	return NewTokenVerifier(j, users)
}

var Set = wire.NewSet(ProvideJWT, ProvideTokenVerifier)
