// Package auth acquires Entra ID access tokens for the Fabric SQL endpoint.
//
// Two flows are supported, selected by configuration:
//   - client-credential (service principal) when a client secret is set
//   - device-code for interactive operator sessions otherwise
//
// Tokens are cached and reused until shortly before expiry, so every query in
// a session does not round-trip to the token endpoint.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/logger"
)

// Scope is the token audience for Azure SQL and Fabric SQL endpoints.
const Scope = "https://database.windows.net/.default"

// Tokens are refreshed this long before they actually expire.
const expiryMargin = 2 * time.Minute

// Config selects and parameterises the credential flow.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string // empty selects the device-code flow
}

// Provider hands out cached access tokens for the SQL scope.
// It is safe for concurrent use by multiple goroutines.
type Provider struct {
	cred azcore.TokenCredential
	log  *logger.Logger

	mu    sync.Mutex
	token azcore.AccessToken
}

// New builds a Provider from cfg. No token is acquired yet; the first call to
// Token performs the initial acquisition.
func New(cfg Config, log *logger.Logger) (*Provider, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "tenant id and client id are required for token acquisition")
	}

	var (
		cred azcore.TokenCredential
		err  error
	)
	if cfg.ClientSecret != "" {
		log.Debug("auth: using client-credential flow")
		cred, err = azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	} else {
		log.Debug("auth: using device-code flow")
		cred, err = azidentity.NewDeviceCodeCredential(&azidentity.DeviceCodeCredentialOptions{
			TenantID: cfg.TenantID,
			ClientID: cfg.ClientID,
			UserPrompt: func(_ context.Context, dc azidentity.DeviceCodeMessage) error {
				// stderr: stdout may carry the MCP protocol.
				log.Infof("auth: %s", dc.Message)
				return nil
			},
		})
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindAuthFailed, "failed to build Azure credential", err)
	}

	return &Provider{cred: cred, log: log}, nil
}

// Token returns a valid access token, acquiring a fresh one when the cached
// token is missing or close to expiry.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token.Token != "" && time.Until(p.token.ExpiresOn) > expiryMargin {
		return p.token.Token, nil
	}

	tok, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{Scope}})
	if err != nil {
		return "", errs.Wrap(errs.ErrKindAuthFailed, fmt.Sprintf("failed to acquire token for %s", Scope), err)
	}

	p.log.With().Str("expires", tok.ExpiresOn.UTC().Format(time.RFC3339)).Logger().
		Debug("auth: acquired access token")
	p.token = tok
	return tok.Token, nil
}

// Clear drops the cached token. The next Token call re-authenticates.
func (p *Provider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = azcore.AccessToken{}
}
