package core

import (
	"fmt"
	"log/slog"
	"strings"
)

// Permission tokens that follow a facility scope.
const (
	PermissionAdmin   = "admin"
	PermissionRegular = "regular"
	SuperuserToken    = "superuser"
	logScopePrefix    = "log"
)

// IsReservedScope reports whether name is taken by a scope token and so
// cannot name a facility.
func IsReservedScope(name string) bool {
	return strings.EqualFold(name, SuperuserToken) || strings.EqualFold(name, logScopePrefix)
}

// Scope is a parsed, space separated permission string such as
// "superuser" or "main:admin main:food log:debug".
type Scope struct {
	superuser bool
	grants    map[string]map[string]struct{}
	logLevel  *slog.Level
	tokens    []string
}

// ParseScope splits s into tokens. Every token other than "superuser" must
// have the form "<facilityScope>:<permission>".
func ParseScope(s string) (Scope, error) {
	sc := Scope{grants: make(map[string]map[string]struct{})}
	for _, tok := range strings.Fields(s) {
		if tok == SuperuserToken {
			sc.superuser = true
			sc.tokens = append(sc.tokens, tok)
			continue
		}
		facility, perm, ok := strings.Cut(tok, ":")
		if !ok || facility == "" || perm == "" || strings.Contains(perm, ":") {
			return Scope{}, fmt.Errorf("%w: malformed token %q", ErrInvalidScope, tok)
		}
		if facility == logScopePrefix {
			var lvl slog.Level
			if err := lvl.UnmarshalText([]byte(perm)); err != nil {
				return Scope{}, fmt.Errorf("%w: unknown log level %q", ErrInvalidScope, perm)
			}
			sc.logLevel = &lvl
			sc.tokens = append(sc.tokens, tok)
			continue
		}
		if sc.grants[facility] == nil {
			sc.grants[facility] = make(map[string]struct{})
		}
		sc.grants[facility][perm] = struct{}{}
		sc.tokens = append(sc.tokens, tok)
	}
	return sc, nil
}

// Superuser reports whether the scope grants everything.
func (s Scope) Superuser() bool {
	return s.superuser
}

// Has reports whether the scope holds any of the permissions on the facility.
// A superuser holds every permission.
func (s Scope) Has(facilityScope string, perms ...string) bool {
	if s.superuser {
		return true
	}
	granted := s.grants[facilityScope]
	for _, p := range perms {
		if _, ok := granted[p]; ok {
			return true
		}
	}
	return false
}

// Any reports whether the scope holds at least one permission on the facility.
func (s Scope) Any(facilityScope string) bool {
	return s.superuser || len(s.grants[facilityScope]) > 0
}

// LogLevel returns the level requested by a "log:<level>" token, if any.
func (s Scope) LogLevel() (slog.Level, bool) {
	if s.logLevel == nil {
		return 0, false
	}
	return *s.logLevel, true
}

func (s Scope) String() string {
	return strings.Join(s.tokens, " ")
}
