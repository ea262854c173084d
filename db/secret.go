package db

import (
	"encoding/base64"
	"fmt"
)

// SecretCodec reversibly transforms credentials before they are persisted.
// Implementations backed by an OS keychain or encrypted store can be plugged
// in via Store.SetSecretCodec.
type SecretCodec interface {
	Encode(secret string) (string, error)
	Decode(stored string) (string, error)
}

// Base64Codec is the default codec. It is obfuscation only, NOT encryption:
// anyone with file access can reverse it. It exists so credentials are not
// stored as recognizable plain text, nothing more.
type Base64Codec struct{}

func (Base64Codec) Encode(secret string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(secret)), nil
}

func (Base64Codec) Decode(stored string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("failed to decode stored credential: %w", err)
	}
	return string(data), nil
}
