package gfycat

// GrantType is the OAuth2 flow requested from the token endpoint.
type GrantType string

const (
	GrantPassword          GrantType = "password"
	GrantClientCredentials GrantType = "client_credentials"
	GrantRefresh           GrantType = "refresh"
)

// Credentials are the client secrets used to mint tokens. They are fixed for
// the lifetime of a Client.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// tokenRequest is a token endpoint payload. Each grant has its own type so
// that the serialized fields are exactly those the grant requires: a client
// credentials payload cannot carry a username, not even as null.
type tokenRequest interface {
	grant() GrantType
}

type passwordRequest struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	GrantType    GrantType `json:"grant_type"`
}

func (passwordRequest) grant() GrantType { return GrantPassword }

type clientCredentialsRequest struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	GrantType    GrantType `json:"grant_type"`
}

func (clientCredentialsRequest) grant() GrantType { return GrantClientCredentials }

type refreshRequest struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	RefreshToken string    `json:"refresh_token"`
	GrantType    GrantType `json:"grant_type"`
}

func (refreshRequest) grant() GrantType { return GrantRefresh }

// Grant produces the payload used to request a brand new token. It is
// selected once when the client is built.
type Grant interface {
	tokenRequest(creds Credentials) tokenRequest
}

// PasswordGrant authenticates as a specific user.
type PasswordGrant struct {
	Username string
	Password string
}

func (g PasswordGrant) tokenRequest(creds Credentials) tokenRequest {
	return passwordRequest{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Username:     g.Username,
		Password:     g.Password,
		GrantType:    GrantPassword,
	}
}

// ClientCredentialsGrant authenticates as the application itself.
type ClientCredentialsGrant struct{}

func (ClientCredentialsGrant) tokenRequest(creds Credentials) tokenRequest {
	return clientCredentialsRequest{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		GrantType:    GrantClientCredentials,
	}
}

func newRefreshRequest(creds Credentials, refreshToken string) tokenRequest {
	return refreshRequest{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RefreshToken: refreshToken,
		GrantType:    GrantRefresh,
	}
}
