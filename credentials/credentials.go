// Package credentials resolves the roles the suite signs in as. Identities
// come from configuration; secrets come from the environment or a sealed
// secrets file and never from the configuration file itself.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/hairizuanbinnoorazman/security-e2e/auth"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
)

var (
	ErrUnknownRole   = errors.New("unknown role")
	ErrMissingSecret = errors.New("no secret configured for role")
	ErrInvalidRole   = errors.New("invalid role")
)

// Entry is one role as written in configuration.
type Entry struct {
	Identity    string `mapstructure:"identity"`
	Workspace   string `mapstructure:"workspace"`
	DisplayName string `mapstructure:"display_name"`
	Expected    string `mapstructure:"expected"`
}

// Role is a resolved identity the suite can sign in with.
type Role struct {
	Name        string
	Identity    string
	Secret      string
	Workspace   string
	DisplayName string
	Expected    auth.Outcome
}

// Credential returns what the login flow needs.
func (r Role) Credential() auth.Credential {
	return auth.Credential{Identity: r.Identity, Secret: r.Secret, Expected: r.Expected}
}

// DefaultEntries are the roles the suites reference.
func DefaultEntries() map[string]Entry {
	return map[string]Entry{
		"admin": {
			Identity:    "automation3@example.com",
			Workspace:   "Automation3 Space",
			DisplayName: "Automation 3",
		},
		"adminSameOrganization": {
			Identity:  "automation3@example.com",
			Workspace: "Automation3 Space",
		},
		"adminOtherOrganization": {
			Identity:  "automation4@example.com",
			Workspace: "Automation3 Space",
		},
		"supportUser": {
			Identity:  "automation5@example.com",
			Workspace: "Automation3 Space",
		},
		"incorrect_user": {
			Identity:  "incorrect@example.com",
			Workspace: "Not found",
			Expected:  string(auth.Rejected),
		},
		"noPermissionsUser": {
			Identity: "automation31@example.com",
			Expected: string(auth.AccessDenied),
		},
		"singleSpaceUser": {
			Identity:  "automation4@example.com",
			Workspace: "Automation4 Space",
		},
	}
}

// Registry holds the resolved roles.
type Registry struct {
	roles map[string]Role
}

// Load resolves entries against sources. Sources are consulted in order and
// the first one holding a role's secret wins. A role expected to be
// rejected that has no secret gets a random one, which no account accepts.
func Load(ctx context.Context, entries map[string]Entry, sources []SecretSource, log logger.Logger) (*Registry, error) {
	roles := make(map[string]Role, len(entries))
	for name, e := range entries {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: empty role name", ErrInvalidRole)
		}
		if strings.TrimSpace(e.Identity) == "" {
			return nil, fmt.Errorf("%w: %s has no identity", ErrInvalidRole, name)
		}
		expected, err := auth.ParseOutcome(e.Expected)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRole, name, err)
		}

		role := Role{
			Name:        name,
			Identity:    e.Identity,
			Workspace:   e.Workspace,
			DisplayName: e.DisplayName,
			Expected:    expected,
		}

		source := ""
		for _, s := range sources {
			if secret, ok := s.Secret(name); ok && secret != "" {
				role.Secret = secret
				source = s.Name()
				break
			}
		}
		if role.Secret == "" && expected == auth.Rejected {
			role.Secret = "invalid-" + uuid.New().String()
			source = "generated"
		}

		log.Debug(ctx, "role resolved", logger.Fields{
			"role":          name,
			"expected":      string(expected),
			"secret_source": source,
		})
		roles[name] = role
	}
	return &Registry{roles: roles}, nil
}

// Get returns the named role. A role without a secret cannot sign in and
// is reported as ErrMissingSecret.
func (r *Registry) Get(name string) (Role, error) {
	role, ok := r.roles[name]
	if !ok {
		return Role{}, fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	if role.Secret == "" {
		return role, fmt.Errorf("%w: %s (set %s)", ErrMissingSecret, name, EnvKey(name))
	}
	return role, nil
}

// Names returns every role name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.roles))
	for name := range r.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ready reports whether the named role has a secret.
func (r *Registry) Ready(name string) bool {
	role, ok := r.roles[name]
	return ok && role.Secret != ""
}

// EnvKey is the environment variable holding a role's secret:
// E2E_CREDENTIALS_<ROLE>_SECRET with the role name in upper snake case.
func EnvKey(role string) string {
	return EnvPrefix + upperSnake(role) + "_SECRET"
}

func upperSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '.':
			b.WriteRune('_')
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			b.WriteRune('_')
			b.WriteRune(r)
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
