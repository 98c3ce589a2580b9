package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JwtCustomClaim is what the auth service signs into bearer tokens.
type JwtCustomClaim struct {
	UserId string `json:"user_id"`
	Name   string `json:"name"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("Retail-Ledger-Secret")
	}
	return []byte(secret)
}

// JwtGenerate signs a token for actor. Used by tests and local tooling; production tokens come from the auth service.
func JwtGenerate(actor Actor) (string, error) {
	lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 24
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		UserId: actor.Id,
		Name:   actor.Name,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour * time.Duration(lifespan)).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})
	return t.SignedString(getJwtSecret())
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
}

// ActorFromJwt validates token and returns the actor it names.
func ActorFromJwt(token string) (Actor, error) {
	parsed, err := JwtValidate(token)
	if err != nil {
		return Actor{}, err
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || !parsed.Valid || claims.UserId == "" {
		return Actor{}, errors.New("invalid token")
	}
	return Actor{Id: claims.UserId, Name: claims.Name}, nil
}
