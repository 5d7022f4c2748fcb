package auth

import "errors"

var (
	ErrMissingAccessToken = errors.New("response did not contain an access token")
	ErrMissingCredential  = errors.New("google credential is required")
)
