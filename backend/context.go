package backend

import "context"

type credsKey struct{}

// WithCredentials attaches the browser session's backend cookies to ctx.
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credsKey{}, creds)
}

// CredentialsFrom returns the cookies attached by WithCredentials, if any.
func CredentialsFrom(ctx context.Context) Credentials {
	creds, _ := ctx.Value(credsKey{}).(Credentials)
	return creds
}
