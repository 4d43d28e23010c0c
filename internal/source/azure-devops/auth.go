// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azuredevops

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// devOpsScope is the Entra scope of the Azure DevOps resource.
	devOpsScope = "499b84ac-1321-427f-aa17-267ca6975798/.default"

	entraTokenURL = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

	tokenRequestTimeout = 30 * time.Second
)

// newTransport wraps base with the authentication selected by the configuration.
// credential is only used in entra mode, when nil the default Azure credential chain is used.
func (c config) newTransport(ctx context.Context, base http.RoundTripper, credential azcore.TokenCredential) (http.RoundTripper, error) {
	var source oauth2.TokenSource
	switch c.AuthMode {
	case AuthModePAT:
		authorization := azuredevops.NewPatConnection(c.OrganizationURL, c.PersonalToken).AuthorizationString
		scheme, credentials, _ := strings.Cut(authorization, " ")
		source = oauth2.StaticTokenSource(&oauth2.Token{
			TokenType:   scheme,
			AccessToken: credentials,
		})
	case AuthModeBearer:
		source = oauth2.StaticTokenSource(&oauth2.Token{
			TokenType:   "Bearer",
			AccessToken: c.BearerToken,
		})
	case AuthModeEntra:
		if credential == nil {
			defaultCredential, err := azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return nil, err
			}
			credential = defaultCredential
		}
		source = oauth2.ReuseTokenSource(nil, &credentialTokenSource{credential: credential})
	case AuthModeClientCredentials:
		tokenURL := c.TokenURL
		if len(tokenURL) == 0 {
			tokenURL = fmt.Sprintf(entraTokenURL, c.TenantID)
		}

		config := clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{devOpsScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		source = config.TokenSource(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown auth mode %q", ErrInvalidEnvVariable, c.AuthMode)
	}

	return &oauth2.Transport{
		Source: source,
		Base:   base,
	}, nil
}

// credentialTokenSource adapts an azcore credential to oauth2.TokenSource.
type credentialTokenSource struct {
	credential azcore.TokenCredential
}

func (s *credentialTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tokenRequestTimeout)
	defer cancel()

	token, err := s.credential.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{devOpsScope},
	})
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		TokenType:   "Bearer",
		AccessToken: token.Token,
		Expiry:      token.ExpiresOn,
	}, nil
}
