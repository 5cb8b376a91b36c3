// Package ident implements the Base64URL identifier codec used to place AAS
// identifiers (URNs, URLs - arbitrary byte strings) safely into HTTP path
// segments, per the repository API's {aasIdentifier} convention.
package ident

import (
	"encoding/base64"
	"fmt"
)

// Encode returns the Base64URL (no padding) encoding of id, suitable for use
// as a single path segment.
func Encode(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// Decode reverses Encode, rejecting tokens that are empty or not valid
// Base64URL, or that decode to an empty identifier.
func Decode(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("ident: empty token")
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// Tolerate padded input from clients that didn't strip '='.
		b, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return "", fmt.Errorf("ident: invalid base64url token: %w", err)
		}
	}
	if len(b) == 0 {
		return "", fmt.Errorf("ident: token decodes to empty identifier")
	}
	return string(b), nil
}
