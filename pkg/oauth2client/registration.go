package oauth2client

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Localized metadata names. Each may also be sent as "<name>#<lang>".
const (
	FieldClientName = "client_name"
	FieldClientURI  = "client_uri"
	FieldLogoURI    = "logo_uri"
	FieldTosURI     = "tos_uri"
	FieldPolicyURI  = "policy_uri"
)

// LocalizedFields are the metadata names accepting a language suffix
var LocalizedFields = []string{FieldClientName, FieldClientURI, FieldLogoURI, FieldTosURI, FieldPolicyURI}

// RegistrationRequest is the client metadata of an RFC 7591 registration
type RegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope"`
	Contacts                []string `json:"contacts"`
	JWKSURI                 string   `json:"jwks_uri"`
	JWKS                    JWKSet   `json:"jwks"`
	SoftwareID              string   `json:"software_id"`
	SoftwareVersion         string   `json:"software_version"`
	SoftwareStatement       string   `json:"software_statement"`

	ClientName Localized `json:"-"`
	ClientURI  Localized `json:"-"`
	LogoURI    Localized `json:"-"`
	TosURI     Localized `json:"-"`
	PolicyURI  Localized `json:"-"`
}

func (r *RegistrationRequest) UnmarshalJSON(data []byte) error {
	type plain RegistrationRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = RegistrationRequest(p)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, value := range raw {
		name, lang, tagged := strings.Cut(key, "#")
		target := r.localized(name)
		if target == nil {
			continue
		}
		if tagged {
			tag, err := language.Parse(lang)
			if err != nil {
				return fmt.Errorf("invalid language tag in %q: %w", key, err)
			}
			lang = tag.String()
		}

		var s *string
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("%s must be a string: %w", key, err)
		}
		if s == nil {
			continue
		}
		if *target == nil {
			*target = Localized{}
		}
		(*target)[lang] = *s
	}
	return nil
}

func (r *RegistrationRequest) localized(name string) *Localized {
	switch name {
	case FieldClientName:
		return &r.ClientName
	case FieldClientURI:
		return &r.ClientURI
	case FieldLogoURI:
		return &r.LogoURI
	case FieldTosURI:
		return &r.TosURI
	case FieldPolicyURI:
		return &r.PolicyURI
	}
	return nil
}

// ApplyDefaults fills in the RFC 7591 defaults for omitted metadata. An
// explicitly empty list is kept.
func (r *RegistrationRequest) ApplyDefaults() {
	if r.TokenEndpointAuthMethod == "" {
		r.TokenEndpointAuthMethod = AuthMethodClientSecretBasic
	}
	if r.GrantTypes == nil {
		r.GrantTypes = []string{GrantAuthorizationCode}
	}
	if r.ResponseTypes == nil {
		r.ResponseTypes = []string{ResponseTypeCode}
	}
}

// metadataURIs lists every URI in the request except the redirect URIs
func (r *RegistrationRequest) metadataURIs() []string {
	var uris []string
	if r.JWKSURI != "" {
		uris = append(uris, r.JWKSURI)
	}
	for _, loc := range []Localized{r.ClientURI, r.LogoURI, r.TosURI, r.PolicyURI} {
		for _, v := range loc {
			uris = append(uris, v)
		}
	}
	return uris
}

// RegistrationResult is the client information response. ClientSecret holds
// the plaintext secret and is only populated on the registration response.
type RegistrationResult struct {
	Client       Client
	ClientSecret string
}

func (res RegistrationResult) MarshalJSON() ([]byte, error) {
	c := res.Client
	out := map[string]any{
		"client_id":                  c.ClientID,
		"client_id_issued_at":        c.ClientIDIssuedAt,
		"token_endpoint_auth_method": c.TokenEndpointAuthMethod,
		"grant_types":                nonNil(c.GrantTypes),
		"response_types":             nonNil(c.ResponseTypes),
		"redirect_uris":              nonNil(c.RedirectURIs),
	}
	if res.ClientSecret != "" {
		out["client_secret"] = res.ClientSecret
		out["client_secret_expires_at"] = c.ClientSecretExpiresAt
	}
	optional := map[string]string{
		"scope":              c.Scope,
		"jwks_uri":           c.JWKSURI,
		"software_id":        c.SoftwareID,
		"software_version":   c.SoftwareVersion,
		"software_statement": c.SoftwareStatement,
	}
	for k, v := range optional {
		if v != "" {
			out[k] = v
		}
	}
	if len(c.Contacts) > 0 {
		out["contacts"] = c.Contacts
	}
	if len(c.JWKS) > 0 {
		out["jwks"] = c.JWKS
	}

	localized := map[string]Localized{
		FieldClientName: c.ClientName,
		FieldClientURI:  c.ClientURI,
		FieldLogoURI:    c.LogoURI,
		FieldTosURI:     c.TosURI,
		FieldPolicyURI:  c.PolicyURI,
	}
	for name, values := range localized {
		for lang, v := range values {
			key := name
			if lang != "" {
				key = name + "#" + lang
			}
			out[key] = v
		}
	}
	return json.Marshal(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
