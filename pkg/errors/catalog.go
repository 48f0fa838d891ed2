package errors

// Client registration errors.
var (
	ErrInvalidClientMetadata = Body(CodeInvalidClientMetadata,
		"Client metadata is invalid")
	ErrInvalidResponseTypes = Body(CodeInvalidClientMetadata,
		`Provided "response_types" does not match "grant_types"`)
	ErrNoRedirectURIs = Body(CodeInvalidClientMetadata,
		`"redirect_uris" must be provided if client use "authorization_code" or "implicit" grant type`)
	ErrPublicClientNotAllowed = Body(CodeInvalidClientMetadata,
		"Public clients are not allowed by authorization server's policy")
	ErrMultipleGrantTypesNotAllowed = Body(CodeInvalidClientMetadata,
		"Multiple grant types are not allowed by authorization server's policy")
	ErrInvalidRedirectURI = Body(CodeInvalidRedirectURI,
		"The value of one or more redirection URIs is invalid.")
	ErrInvalidMetadataURI = Body(CodeInvalidClientMetadata,
		"Scheme and site of all URIs must be same with one of redirect URIs")
	ErrSuspiciousSoftware = Body(CodeInvalidClientMetadata,
		"Software version and/or software id are suspicious")
	ErrJWKSConflict = Body(CodeInvalidClientMetadata,
		`"jwks_uri" and "jwks" must not both be present`)
	ErrInvalidJWK = Body(CodeInvalidClientMetadata,
		`One or more keys in "jwks" cannot be used`)
	ErrInvalidSoftwareStatement = Body(CodeInvalidSoftwareStatement,
		"The software statement presented is invalid")
	ErrUnapprovedSoftwareStatement = Body(CodeUnapprovedSoftwareStatement,
		"The software statement presented is not approved for use by this authorization server")
	ErrNoInitialToken = Body(CodeAccessDenied,
		"Initial token required")
	ErrInvalidInitialToken = Body(CodeAccessDenied,
		"Initial token is invalid")
)

// Authorization endpoint errors, RFC 6749 section 4.1.2.1.
var (
	ErrAuthInvalidRequest = Redirect(CodeInvalidRequest,
		"The request is missing a required parameter, includes an invalid parameter value, includes a parameter more than once, or is otherwise malformed")
	ErrAuthUnauthorizedClient = Redirect(CodeUnauthorizedClient,
		"The client is not authorized to request an authorization code using this method")
	ErrAuthAccessDenied = Redirect(CodeAccessDenied,
		"The resource owner or authorization server denied the request")
	ErrAuthUnsupportedResponseType = Redirect(CodeUnsupportedResponseType,
		"The authorization server does not support obtaining an authorization code using this method")
	ErrAuthInvalidScope = Redirect(CodeInvalidScope,
		"The requested scope is invalid, unknown, or malformed")
	ErrAuthServerError = Redirect(CodeServerError,
		"The authorization server encountered an unexpected condition that prevented it from fulfilling the request")
	ErrAuthTemporarilyUnavailable = Redirect(CodeTemporarilyUnavailable,
		"The authorization server is currently unable to handle the request due to a temporary overloading or maintenance of the server")
)

// Pre-redirect authorization failures. No trustworthy redirect target exists yet.
var (
	ErrUnknownClient = Body(CodeUnauthorizedClient,
		"The client identifier is missing or unknown")
	ErrRedirectURIMismatch = Body(CodeInvalidRequest,
		"The redirection URI is missing or not registered for this client")
	ErrMalformedRequest = Body(CodeInvalidRequest,
		"The request could not be parsed")
)

// Token endpoint errors, RFC 6749 section 5.2.
var (
	ErrTokenInvalidRequest = Token(CodeInvalidRequest,
		"The request is missing a required parameter, includes an unsupported parameter value, repeats a parameter, or is otherwise malformed")
	ErrTokenUnauthorizedClient = Token(CodeUnauthorizedClient,
		"The authenticated client is not authorized to use this authorization grant type")
	ErrTokenAccessDenied = Token(CodeAccessDenied,
		"Client authentication failed")
	ErrTokenInvalidGrant = Token(CodeInvalidGrant,
		"The provided authorization grant is invalid, expired, revoked, or was issued to another client")
	ErrTokenUnsupportedGrantType = Token(CodeUnsupportedGrantType,
		"The authorization grant type is not supported by the authorization server")
	ErrTokenInvalidScope = Token(CodeInvalidScope,
		"The requested scope is invalid, unknown, or malformed")
)
