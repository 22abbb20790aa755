package config

import "errors"

var (
	// ErrInsecureSecretKey is returned when debug is off and no secret key was supplied.
	ErrInsecureSecretKey = errors.New("DJANGO_SECRET_KEY or SECRET_KEY must be set when debug is disabled")
	// ErrInvalidDatabaseURL is returned when DATABASE_URL cannot be turned into a descriptor.
	ErrInvalidDatabaseURL = errors.New("invalid DATABASE_URL")
	// ErrMalformedList is returned when a structured list is not a JSON array of strings.
	ErrMalformedList = errors.New("value is not a JSON array of strings")
)
