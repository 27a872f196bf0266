package api

import "regexp"

// validGameID mirrors the wire protocol's identifier validation (spec §6
// "Identifier validation"): `game_id` must match ^[A-Za-z0-9_.-]{1,128}$.
var validGameID = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

const maxGameIDLength = 128

// sanitizeGameID enforces the spec's client-side sanitize-and-truncate
// policy: any character outside [A-Za-z0-9_.-] becomes '_', and the result
// is truncated to 128 bytes. Applied at package_save, the one place a
// caller-supplied game_id first enters the system.
func sanitizeGameID(gameID string) string {
	if validGameID.MatchString(gameID) {
		return gameID
	}

	out := []byte(gameID)
	for i, c := range out {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '.', c == '-':
		default:
			out[i] = '_'
		}
	}

	if len(out) > maxGameIDLength {
		out = out[:maxGameIDLength]
	}

	if len(out) == 0 {
		return "_"
	}

	return string(out)
}
