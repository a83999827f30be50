// Package auth derives a typed Principal — "who is calling, and what can
// they do" — from the claim list of an already-validated token.
//
// WHAT THIS PACKAGE DOES NOT DO:
// It never verifies signatures, expiry, or issuers. The gateway in front of
// the platform owns cryptographic validation; by the time a claim list
// reaches this code it is trusted as authentic. This package only answers
// "what do these claims MEAN", and answers it the same way for every caller.
package auth

import (
	"strconv"

	"github.com/sakif/roster/internal/apperror"
	"github.com/sakif/roster/internal/model"
)

// Claim is a single (type, value) assertion from an authentication token.
type Claim struct {
	Type  string
	Value string
}

// Claim types Extract understands. Anything else is ignored — parsing is
// forward-compatible with claim types added by newer token issuers.
const (
	// ClaimID carries the caller's numeric user id.
	ClaimID = "sub"
	// ClaimName carries the caller's display name.
	ClaimName = "name"
	// ClaimRole carries one role value. It is repeatable: a token may hold
	// several role claims and the principal accumulates all of them.
	ClaimRole = "role"
)

// Principal is the immutable, typed view of the caller for one request.
//
// WHY UNEXPORTED FIELDS?
// A principal is built once from the token and must never change afterwards
// — authorization decisions downstream rely on it being a fixed fact about
// the request. Unexported fields plus copy-returning accessors make
// mutation impossible outside this package.
type Principal struct {
	id            int64
	name          string
	roles         model.RoleSet
	authenticated bool
}

// Unauthenticated returns the sentinel principal representing the absence
// of a valid token. It is never Equal to any authenticated principal —
// including one that merely has zero special roles.
func Unauthenticated() Principal {
	return Principal{roles: make(model.RoleSet)}
}

// ID returns the caller's user id. Zero for the unauthenticated sentinel.
func (p Principal) ID() int64 { return p.id }

// Name returns the caller's display name.
func (p Principal) Name() string { return p.name }

// Authenticated reports whether this principal came from a valid token.
func (p Principal) Authenticated() bool { return p.authenticated }

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role model.Role) bool { return p.roles.Has(role) }

// Roles returns a copy of the principal's role set. Mutating the returned
// set does not affect the principal.
func (p Principal) Roles() model.RoleSet { return p.roles.Clone() }

// Equal reports whether two principals identify the same caller.
// Equality is by id — the role set and display name don't participate.
// The unauthenticated sentinel (id 0, no claims) equals only itself: a
// principal built from real claims carries a real id even when its
// authenticated flag is off, and that id keeps it distinct.
func (p Principal) Equal(o Principal) bool {
	if p.authenticated != o.authenticated {
		return false
	}
	return p.id == o.id
}

// Extract converts a token's claim list into a Principal.
//
// RULES:
//   - An empty claim list yields the Unauthenticated() sentinel, no error.
//   - Unknown claim types are skipped (never an error).
//   - The role claim is repeatable; unknown role VALUES become
//     model.RoleUnrecognized rather than vanishing.
//   - A missing or non-numeric id claim is apperror.ErrMalformedPrincipal:
//     the caller must fall back to treating the request as unauthenticated
//     instead of crashing.
//
// authenticated is the flag carried by the enclosing token and is copied
// onto the principal as-is.
func Extract(claims []Claim, authenticated bool) (Principal, error) {
	if len(claims) == 0 {
		return Unauthenticated(), nil
	}

	p := Principal{
		roles:         make(model.RoleSet),
		authenticated: authenticated,
	}
	sawID := false

	for _, c := range claims {
		switch c.Type {
		case ClaimID:
			id, err := strconv.ParseInt(c.Value, 10, 64)
			if err != nil {
				return Unauthenticated(), apperror.MalformedPrincipal(
					"id claim is not numeric: " + c.Value)
			}
			p.id = id
			sawID = true
		case ClaimName:
			p.name = c.Value
		case ClaimRole:
			p.roles.Add(model.ParseRole(c.Value))
		default:
			// Forward compatibility: tokens from newer issuers may carry
			// claim types this build has never heard of.
		}
	}

	if !sawID {
		return Unauthenticated(), apperror.MalformedPrincipal("token has no id claim")
	}

	return p, nil
}
