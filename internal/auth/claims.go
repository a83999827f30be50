package auth

import (
	"fmt"
	"math"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/roster/internal/apperror"
)

// ClaimsFromJWT flattens a decoded JWT claim map into the ordered Claim
// list Extract consumes.
//
// JWT QUIRKS HANDLED HERE:
//   - "sub" may arrive as a string or (via JSON) as a float64. Integral
//     numbers are normalised to their decimal string form; fractional ones
//     are kept verbatim and then rejected by Extract's id parsing.
//   - Roles may arrive as a single "role" string or as an array; each
//     element becomes its own repeatable role claim.
//   - Everything else is passed through as an opaque claim for Extract to
//     ignore, so new claim types don't need changes here either.
func ClaimsFromJWT(mc jwt.MapClaims) []Claim {
	claims := make([]Claim, 0, len(mc))

	for key, value := range mc {
		switch v := value.(type) {
		case string:
			claims = append(claims, Claim{Type: key, Value: v})
		case float64:
			// encoding/json decodes all JSON numbers as float64. Only
			// integral values get the decimal-integer form; a fractional
			// number is kept verbatim so a claim like sub=17.9 fails id
			// parsing in Extract instead of masquerading as user 17.
			if v == math.Trunc(v) {
				claims = append(claims, Claim{Type: key, Value: strconv.FormatInt(int64(v), 10)})
			} else {
				claims = append(claims, Claim{Type: key, Value: strconv.FormatFloat(v, 'f', -1, 64)})
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					claims = append(claims, Claim{Type: key, Value: s})
				}
			}
		default:
			// Structured claim values have no meaning to Extract — skip.
		}
	}

	return claims
}

// ExtractFromJWT decodes tokenString and extracts its principal.
//
// The token is parsed WITHOUT signature verification: cryptographic
// validation happens at the gateway before requests reach this core, and
// the admin CLI uses this to inspect tokens it has no key for. Do not use
// this as an authentication check on an untrusted input path.
func ExtractFromJWT(tokenString string) (Principal, error) {
	mc := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, mc); err != nil {
		return Unauthenticated(), apperror.MalformedPrincipal(
			fmt.Sprintf("token does not decode: %v", err))
	}

	return Extract(ClaimsFromJWT(mc), true)
}
