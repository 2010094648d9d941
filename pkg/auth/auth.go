// Package auth applies portal credentials to outgoing fetch requests.
// Secrets are read from the environment so they never live in the config
// file.
//
//go:generate mockgen -destination=./mocks/auth.go . Authenticator
package auth

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/glorpus-work/fetchmirror/pkg/errors"
)

// Authenticator adds credentials to a request before it is sent.
type Authenticator interface {
	Apply(req *http.Request) error
	Type() Type
}

// Type represents the type of authentication.
type Type string

// Authentication types.
const (
	// NoneType sends requests without credentials.
	NoneType Type = ""
	// BasicAuthType represents HTTP Basic Authentication.
	BasicAuthType Type = "basic"
	// HeaderAuthType sends fixed headers, such as an API key.
	HeaderAuthType Type = "header"
	// BearerAuthType represents Bearer token authentication.
	BearerAuthType Type = "bearer"
)

// Config is the auth section of the fetch configuration.
type Config struct {
	Type        Type              `yaml:"type,omitempty"`
	Username    string            `yaml:"username,omitempty"`
	PasswordEnv string            `yaml:"password_env,omitempty"`
	TokenEnv    string            `yaml:"token_env,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"` // values expand $VAR
}

// BasicAuth represents HTTP Basic Authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// HeaderAuth represents authentication via custom HTTP headers.
type HeaderAuth struct {
	Headers map[string]string
}

// BearerAuth represents Bearer token authentication.
type BearerAuth struct {
	Token string
}

// Validate checks the shape of cfg without resolving any secret.
func (c Config) Validate() error {
	switch Type(strings.ToLower(string(c.Type))) {
	case NoneType:
		return nil
	case BasicAuthType:
		if c.Username == "" {
			return fmt.Errorf("%w: basic auth needs a username", errors.ErrAuthConfig)
		}
	case BearerAuthType:
		if c.TokenEnv == "" {
			return fmt.Errorf("%w: bearer auth needs token_env", errors.ErrAuthConfig)
		}
	case HeaderAuthType:
		if len(c.Headers) == 0 {
			return fmt.Errorf("%w: header auth needs at least one header", errors.ErrAuthConfig)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", errors.ErrAuthConfig, c.Type)
	}
	return nil
}

// New builds the Authenticator described by cfg, resolving secrets with
// lookup. It returns nil for NoneType. A nil lookup uses os.LookupEnv.
func New(cfg Config, lookup func(string) (string, bool)) (Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	switch Type(strings.ToLower(string(cfg.Type))) {
	case BasicAuthType:
		password := ""
		if cfg.PasswordEnv != "" {
			v, ok := lookup(cfg.PasswordEnv)
			if !ok {
				return nil, fmt.Errorf("%w: %s is not set", errors.ErrAuthConfig, cfg.PasswordEnv)
			}
			password = v
		}
		return BasicAuth{Username: cfg.Username, Password: password}, nil
	case BearerAuthType:
		token, ok := lookup(cfg.TokenEnv)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not set", errors.ErrAuthConfig, cfg.TokenEnv)
		}
		return BearerAuth{Token: token}, nil
	case HeaderAuthType:
		headers := make(map[string]string, len(cfg.Headers))
		for k, v := range cfg.Headers {
			headers[k] = os.Expand(v, func(name string) string {
				val, _ := lookup(name)
				return val
			})
		}
		return HeaderAuth{Headers: headers}, nil
	default:
		return nil, nil
	}
}

// Apply adds Basic Authentication headers to the HTTP request.
func (b BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// Type returns BasicAuthType.
func (b BasicAuth) Type() Type { return BasicAuthType }

// Apply adds custom headers to the HTTP request.
func (h HeaderAuth) Apply(req *http.Request) error {
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

// Type returns HeaderAuthType.
func (h HeaderAuth) Type() Type { return HeaderAuthType }

// Apply adds a Bearer token to the Authorization header of the HTTP request.
func (b BearerAuth) Apply(req *http.Request) error {
	if b.Token == "" {
		return fmt.Errorf("%w: empty bearer token", errors.ErrAuthConfig)
	}
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// Type returns BearerAuthType.
func (b BearerAuth) Type() Type { return BearerAuthType }
