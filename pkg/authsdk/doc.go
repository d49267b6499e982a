/*
Package authsdk provides a client SDK for the Loxya session API and the
request, response and error types shared with the server.

# SDKClient vs Session

  - SDKClient: unauthenticated operations (login, password reset, bootstrap, health)
  - Session: operations that carry a session token

	client := authsdk.NewSDKClient("https://loxya.example.com")
	client.AcceptLanguage = "fr-FR"

	session, err := client.Login(ctx, "alice", password, "")
	if errors.Is(err, authsdk.ErrTOTPRequired) {
		session, err = client.Login(ctx, "alice", password, otpCode)
	}

	me, err := session.CurrentUser(ctx)

# Client Binding

Session tokens are bound to a fingerprint of the User-Agent and
Accept-Language headers of the request that obtained them. A token replayed
with different values is treated as anonymous. The client sends
SDKClient.UserAgent and SDKClient.AcceptLanguage on every request; keep them
fixed for the lifetime of a Session. Password reset tokens are bound the same
way.

# Expiry

Sessions are not refreshable. Once ExpiresAt has passed, Session methods
return ErrSessionExpired without contacting the server. Logout clears the
local token and asks the server to clear its cookie; the token itself stays
valid until it expires.

# Errors

Server errors are returned as *APIError with the HTTP status, a stable code
and a description. The predefined values (ErrInvalidCredentials,
ErrTOTPRequired, ErrInvalidToken, ...) match with errors.Is. Request bodies
are validated client-side with the same rules the server applies; failures
are returned as *ValidationError keyed by JSON field name.

# Thread Safety

SDKClient and Session are safe for concurrent use.
*/
package authsdk
