package gfycat

import (
	"fmt"

	"github.com/chinmina/catvid-bridge/internal/config"
)

// NewFromConfig builds a Client from environment configuration, selecting the
// grant the configuration resolves to. Options are applied after the
// configured API URL and public host.
func NewFromConfig(cfg config.GfycatConfig, opts ...ClientOption) (*Client, error) {
	b := NewBuilder(cfg.ClientID, cfg.ClientSecret, cfg.AlbumID)

	switch cfg.Grant() {
	case config.GrantPassword:
		b.PasswordGrant(cfg.Username, cfg.Password)
	case config.GrantClientCredentials:
		b.ClientCredentialsGrant()
	default:
		return nil, fmt.Errorf("unsupported grant type %q", cfg.Grant())
	}

	opts = append([]ClientOption{
		WithAPIURL(cfg.APIURL),
		WithPublicHost(cfg.PublicHost),
	}, opts...)

	return b.Build(opts...)
}
