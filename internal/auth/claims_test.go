package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/roster/internal/apperror"
	"github.com/sakif/roster/internal/model"
)

func TestClaimsFromJWT_NormalisesValues(t *testing.T) {
	mc := jwt.MapClaims{
		"sub":  float64(42), // JSON numbers decode as float64
		"name": "Grace Hopper",
		"role": []any{"STUDENT", "TEACHER"},
		"nbf":  map[string]any{"weird": true}, // structured values are dropped
	}

	claims := ClaimsFromJWT(mc)

	byType := map[string][]string{}
	for _, c := range claims {
		byType[c.Type] = append(byType[c.Type], c.Value)
	}

	assert.Equal(t, []string{"42"}, byType["sub"])
	assert.Equal(t, []string{"Grace Hopper"}, byType["name"])
	assert.ElementsMatch(t, []string{"STUDENT", "TEACHER"}, byType["role"])
	assert.Empty(t, byType["nbf"])
}

func TestClaimsFromJWT_FractionalIDIsMalformed(t *testing.T) {
	// A fractional sub must not be truncated into some other caller's id.
	claims := ClaimsFromJWT(jwt.MapClaims{"sub": 17.9})

	require.Len(t, claims, 1)
	assert.Equal(t, "17.9", claims[0].Value)

	p, err := Extract(claims, true)
	require.ErrorIs(t, err, apperror.ErrMalformedPrincipal)
	assert.False(t, p.Authenticated())
}

func TestExtractFromJWT_RoundTrip(t *testing.T) {
	// Build a real signed token the way the gateway would. The signing key
	// is irrelevant here — extraction deliberately never checks it.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "17",
		"name": "Ada Lovelace",
		"role": []any{"STUDENT", "COURSE_ADMINISTRATOR"},
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("some-gateway-secret"))
	require.NoError(t, err)

	p, err := ExtractFromJWT(signed)
	require.NoError(t, err)

	assert.Equal(t, int64(17), p.ID())
	assert.Equal(t, "Ada Lovelace", p.Name())
	assert.True(t, p.Authenticated())
	assert.True(t, p.HasRole(model.RoleStudent))
	assert.True(t, p.HasRole(model.RoleCourseAdministrator))
	assert.False(t, p.HasRole(model.RoleTeacher))
}

func TestExtractFromJWT_Garbage(t *testing.T) {
	p, err := ExtractFromJWT("definitely.not.a.token")

	require.ErrorIs(t, err, apperror.ErrMalformedPrincipal)
	assert.False(t, p.Authenticated(), "garbage must fall back to the sentinel")
}
