// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azuredevops

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrInvalidEnvVariable reports environment variables with an unusable value.
	ErrInvalidEnvVariable = errors.New("invalid environment variable")
)

// AuthMode selects how requests are authenticated.
type AuthMode string

const (
	// AuthModePAT uses a personal access token as basic auth password.
	AuthModePAT AuthMode = "pat"
	// AuthModeBearer sends a static bearer token.
	AuthModeBearer AuthMode = "bearer"
	// AuthModeEntra obtains tokens from the Azure default credential chain.
	AuthModeEntra AuthMode = "entra"
	// AuthModeClientCredentials obtains tokens for a service principal with the client credentials flow.
	AuthModeClientCredentials AuthMode = "client-credentials"
)

const (
	azureDevOpsHost    = "dev.azure.com"
	visualStudioDomain = ".visualstudio.com"
	releaseHostPrefix  = "vsrm."
)

// config holds all the configuration needed to connect to Azure DevOps.
type config struct {
	OrganizationURL string   `env:"AZURE_DEVOPS_ORGANIZATION_URL"`
	Project         string   `env:"AZURE_DEVOPS_PROJECT"`
	ReleaseURL      string   `env:"AZURE_DEVOPS_RELEASE_URL"`
	AuthMode        AuthMode `env:"AZURE_DEVOPS_AUTH_MODE" envDefault:"pat"`
	PersonalToken   string   `env:"AZURE_DEVOPS_PERSONAL_TOKEN"`
	BearerToken     string   `env:"AZURE_DEVOPS_BEARER_TOKEN"`
	TenantID        string   `env:"AZURE_DEVOPS_TENANT_ID"`
	ClientID        string   `env:"AZURE_DEVOPS_CLIENT_ID"`
	ClientSecret    string   `env:"AZURE_DEVOPS_CLIENT_SECRET"`
	TokenURL        string   `env:"AZURE_DEVOPS_TOKEN_URL"`

	RequestTimeout  time.Duration `env:"AZURE_DEVOPS_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxRetries      uint          `env:"AZURE_DEVOPS_MAX_RETRIES" envDefault:"3"`
	PullRequestsTop int           `env:"AZURE_DEVOPS_PULL_REQUESTS_TOP" envDefault:"100"`
	BuildsTop       int           `env:"AZURE_DEVOPS_BUILDS_TOP" envDefault:"20"`
	ReleasesTop     int           `env:"AZURE_DEVOPS_RELEASES_TOP" envDefault:"20"`
}

func (c config) validate() error {
	if len(c.OrganizationURL) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "AZURE_DEVOPS_ORGANIZATION_URL")
	}

	if _, err := url.ParseRequestURI(c.OrganizationURL); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrInvalidEnvVariable, "AZURE_DEVOPS_ORGANIZATION_URL", err)
	}

	if len(c.Project) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "AZURE_DEVOPS_PROJECT")
	}

	switch c.AuthMode {
	case AuthModePAT:
		if len(c.PersonalToken) == 0 {
			return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "AZURE_DEVOPS_PERSONAL_TOKEN")
		}
	case AuthModeBearer:
		if len(c.BearerToken) == 0 {
			return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "AZURE_DEVOPS_BEARER_TOKEN")
		}
	case AuthModeEntra:
	case AuthModeClientCredentials:
		if len(c.ClientID) == 0 || len(c.ClientSecret) == 0 {
			return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "AZURE_DEVOPS_CLIENT_ID and AZURE_DEVOPS_CLIENT_SECRET")
		}
		if len(c.TenantID) == 0 && len(c.TokenURL) == 0 {
			return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "AZURE_DEVOPS_TENANT_ID")
		}
	default:
		return fmt.Errorf("%w: AZURE_DEVOPS_AUTH_MODE %q, must be one of pat, bearer, entra, client-credentials", ErrInvalidEnvVariable, c.AuthMode)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidEnvVariable, "AZURE_DEVOPS_REQUEST_TIMEOUT")
	}

	if c.PullRequestsTop <= 0 || c.BuildsTop <= 0 || c.ReleasesTop <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEnvVariable, "page sizes must be positive")
	}
	return nil
}

// releaseBaseURL returns the URL of the release management service. Hosted organizations
// serve it on the vsrm host, on premise servers on the organization URL itself.
func (c config) releaseBaseURL() (*url.URL, error) {
	if len(c.ReleaseURL) > 0 {
		return url.Parse(c.ReleaseURL)
	}

	releaseURL, err := url.Parse(c.OrganizationURL)
	if err != nil {
		return nil, err
	}

	host := strings.ToLower(releaseURL.Hostname())
	switch {
	case host == azureDevOpsHost:
		releaseURL.Host = releaseHostPrefix + releaseURL.Host
	case strings.HasSuffix(host, visualStudioDomain):
		organization := strings.TrimSuffix(releaseURL.Host, visualStudioDomain)
		releaseURL.Host = organization + "." + releaseHostPrefix + strings.TrimPrefix(visualStudioDomain, ".")
	}
	return releaseURL, nil
}
