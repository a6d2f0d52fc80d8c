package credentials

import (
	"os"
	"sort"
)

// EnvPrefix starts every secret variable.
const EnvPrefix = "E2E_CREDENTIALS_"

// SecretSource looks up a role's secret.
type SecretSource interface {
	Name() string
	Secret(role string) (string, bool)
}

// Env reads secrets from environment variables named by EnvKey.
type Env struct {
	lookup func(string) (string, bool)
}

// NewEnv creates a source over the process environment.
func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

func (e *Env) Name() string { return "env" }

func (e *Env) Secret(role string) (string, bool) {
	return e.lookup(EnvKey(role))
}

// Secrets is an in-memory role to secret map, the content of a sealed file.
type Secrets map[string]string

func (s Secrets) Name() string { return "sealed" }

func (s Secrets) Secret(role string) (string, bool) {
	v, ok := s[role]
	return v, ok
}

// Roles returns the roles with a secret, sorted.
func (s Secrets) Roles() []string {
	out := make([]string, 0, len(s))
	for role := range s {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}
