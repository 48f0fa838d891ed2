package oauth2client

import (
	"net/url"
	"slices"

	"github.com/google/uuid"
	"github.com/tendant/oauth-idm/pkg/config"
	idmerrors "github.com/tendant/oauth-idm/pkg/errors"
	"github.com/tendant/oauth-idm/pkg/jwks"
)

// MaxURILength bounds redirect and metadata URIs
const MaxURILength = 2083

// Policy is the server's client registration policy
type Policy struct {
	AllowPublicClients        bool
	AllowMultipleGrantTypes   bool
	RequireSoftwareStatement  bool
	StrictURIs                bool
	AllowMultiInstanceClients bool
	// ClientSecretLen is the number of random bytes in a generated secret
	ClientSecretLen     int
	ClientSecretExpDays int
}

// NewPolicy builds the policy from configuration
func NewPolicy(cfg config.RegistrationConfig) Policy {
	return Policy{
		AllowPublicClients:        cfg.AllowPublicClients,
		AllowMultipleGrantTypes:   cfg.AllowMultipleGrantTypes,
		RequireSoftwareStatement:  cfg.RequireSoftwareStatement,
		StrictURIs:                cfg.StrictURIs,
		AllowMultiInstanceClients: cfg.AllowMultiInstanceClients,
		ClientSecretLen:           cfg.ClientSecretLen,
		ClientSecretExpDays:       cfg.ClientSecretExpDays,
	}
}

// Validate applies defaults to req and checks it against the policy. The
// first failing check wins. The duplicate-instance check needs the registry
// and runs in ClientService.Register.
func (p Policy) Validate(req *RegistrationRequest) error {
	req.ApplyDefaults()

	if err := validateShape(req); err != nil {
		return err
	}

	if !p.AllowPublicClients && req.TokenEndpointAuthMethod == AuthMethodNone {
		return idmerrors.ErrPublicClientNotAllowed
	}
	if !p.AllowMultipleGrantTypes && len(req.GrantTypes) > 1 {
		return idmerrors.ErrMultipleGrantTypesNotAllowed
	}
	if p.RequireSoftwareStatement && req.SoftwareStatement == "" {
		return idmerrors.ErrInvalidSoftwareStatement
	}

	for _, m := range grantResponseTypes {
		if slices.Contains(req.ResponseTypes, m.response) && !slices.Contains(req.GrantTypes, m.grant) {
			return idmerrors.ErrInvalidResponseTypes
		}
	}

	if needsRedirectURIs(req.GrantTypes) && len(req.RedirectURIs) == 0 {
		return idmerrors.ErrNoRedirectURIs
	}

	origins := make(map[string]bool, len(req.RedirectURIs))
	for _, raw := range req.RedirectURIs {
		u, ok := parseHTTPSURL(raw)
		if !ok {
			return idmerrors.ErrInvalidRedirectURI
		}
		origins[origin(u)] = true
	}

	if p.StrictURIs {
		for _, raw := range req.metadataURIs() {
			u, _ := parseHTTPSURL(raw)
			if !origins[origin(u)] {
				return idmerrors.ErrInvalidMetadataURI
			}
		}
	}

	if !p.AllowMultiInstanceClients && (req.SoftwareID == "" || req.SoftwareVersion == "") {
		return idmerrors.ErrSuspiciousSoftware
	}
	return nil
}

// validateShape rejects values the client metadata model cannot hold
func validateShape(req *RegistrationRequest) error {
	if !validTokenEndpointAuthMethods[req.TokenEndpointAuthMethod] {
		return idmerrors.ErrInvalidClientMetadata
	}
	for _, gt := range req.GrantTypes {
		if !validGrantTypes[gt] {
			return idmerrors.ErrInvalidClientMetadata
		}
	}
	for _, rt := range req.ResponseTypes {
		if !validResponseTypes[rt] {
			return idmerrors.ErrInvalidClientMetadata
		}
	}
	if req.JWKSURI != "" && len(req.JWKS) > 0 {
		return idmerrors.ErrJWKSConflict
	}
	for _, raw := range req.JWKS {
		if _, err := jwks.ParseClientKey(raw); err != nil {
			return idmerrors.ErrInvalidJWK.Wrap(err)
		}
	}
	for _, raw := range req.metadataURIs() {
		if _, ok := parseHTTPSURL(raw); !ok {
			return idmerrors.ErrInvalidClientMetadata
		}
	}
	if req.SoftwareID != "" {
		if _, err := uuid.Parse(req.SoftwareID); err != nil {
			return idmerrors.ErrInvalidClientMetadata.Wrap(err)
		}
	}
	return nil
}

func needsRedirectURIs(grantTypes []string) bool {
	return slices.Contains(grantTypes, GrantAuthorizationCode) || slices.Contains(grantTypes, GrantImplicit)
}

func parseHTTPSURL(raw string) (*url.URL, bool) {
	if raw == "" || len(raw) > MaxURILength {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, false
	}
	return u, true
}

// origin is scheme://host without the port, matching by site
func origin(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Scheme + "://" + u.Hostname()
}
