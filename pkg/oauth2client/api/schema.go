package api

import (
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/tendant/oauth-idm/pkg/oauth2client"
)

// ClientMetadataSchema describes the body of POST /oauth/register. Localized
// "<name>#<lang>" keys travel as additional properties.
func ClientMetadataSchema() *openapi3.Schema {
	grantTypes := []interface{}{
		oauth2client.GrantAuthorizationCode,
		oauth2client.GrantImplicit,
		oauth2client.GrantPassword,
		oauth2client.GrantClientCredentials,
		oauth2client.GrantRefreshToken,
		oauth2client.GrantJWTBearer,
		oauth2client.GrantSAML2Bearer,
	}

	return openapi3.NewObjectSchema().
		WithProperty("redirect_uris", describe(
			openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()).WithNullable(),
			"Array of redirection URI strings for use in redirect-based flows such as the authorization code and implicit flows.")).
		WithProperty("token_endpoint_auth_method", describe(
			openapi3.NewStringSchema().WithEnum(
				oauth2client.AuthMethodNone,
				oauth2client.AuthMethodClientSecretPost,
				oauth2client.AuthMethodClientSecretBasic,
			).WithDefault(oauth2client.AuthMethodClientSecretBasic).WithNullable(),
			"Requested authentication method for the token endpoint.")).
		WithProperty("grant_types", describe(
			openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema().WithEnum(grantTypes...)).WithNullable(),
			"Array of OAuth 2.0 grant type strings that the client can use at the token endpoint.")).
		WithProperty("response_types", describe(
			openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema().WithEnum(
				oauth2client.ResponseTypeCode,
				oauth2client.ResponseTypeToken,
			)).WithNullable(),
			"Array of the OAuth 2.0 response type strings that the client can use at the authorization endpoint.")).
		WithProperty(oauth2client.FieldClientName, describe(
			openapi3.NewStringSchema().WithNullable(),
			"Human-readable name of the client to be presented to the end-user during authorization.")).
		WithProperty(oauth2client.FieldClientURI, uriSchema("Web page providing information about the client.")).
		WithProperty(oauth2client.FieldLogoURI, uriSchema("Logo for the client.")).
		WithProperty("scope", describe(
			openapi3.NewStringSchema().WithNullable(),
			"Space-separated list of scope values that the client can use when requesting access tokens.")).
		WithProperty("contacts", describe(
			openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()).WithNullable(),
			"Ways to contact people responsible for this client, typically email addresses.")).
		WithProperty(oauth2client.FieldTosURI, uriSchema("Terms of service document for the client.")).
		WithProperty(oauth2client.FieldPolicyURI, uriSchema("Privacy policy document for the client.")).
		WithProperty("jwks_uri", uriSchema(`Client's JSON Web Key Set document. Must not be sent together with "jwks".`)).
		WithProperty("jwks", describe(
			&openapi3.Schema{Nullable: true},
			`Client's JSON Web Key Set document value. Must not be sent together with "jwks_uri".`)).
		WithProperty("software_id", describe(
			openapi3.NewUUIDSchema().WithNullable(),
			"UUID assigned by the client developer or software publisher.")).
		WithProperty("software_version", describe(
			openapi3.NewStringSchema().WithNullable(),
			`Version identifier of the software identified by "software_id".`)).
		WithProperty("software_statement", describe(
			openapi3.NewStringSchema().WithNullable(),
			"Signed JWT asserting metadata values about the client software."))
}

func uriSchema(description string) *openapi3.Schema {
	return describe(
		openapi3.NewStringSchema().WithFormat("uri").WithMaxLength(oauth2client.MaxURILength).WithNullable(),
		description)
}

func describe(s *openapi3.Schema, description string) *openapi3.Schema {
	s.Description = description
	return s
}
