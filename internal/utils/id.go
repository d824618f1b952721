package utils

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	userIDPrefix = "user_"
	// 21 symbols of a 64-symbol alphabet carry 126 bits.
	userIDSize = 21
)

// NewID returns a random identifier for a connection.
func NewID() string {
	return uuid.NewString()
}

// NewUserID returns a fresh persistent user id such as "user_V1StGXR8_Z5jdHi6B-myT".
func NewUserID() (string, error) {
	id, err := gonanoid.New(userIDSize)
	if err != nil {
		return "", err
	}
	return userIDPrefix + id, nil
}
