/*
Package security groups credential handling for upstream calls.

# Secret Resolution

The secrets package resolves vendor API keys and the backend client secret
from environment variables or a mounted secrets directory:

	manager, err := secrets.NewFromConfig(cfg.Secrets)
	if err != nil {
		return err
	}
	keys := secrets.NewVendorKeys(manager, names)
	key, ok := keys.APIKey(ctx, "anthropic")

Values of the form ${secret:name} inside configuration strings are
expanded with Manager.ResolveReferences.

# Backend Tokens

The token package fetches and caches OAuth2 client-credentials tokens for
the inference backend:

	tokens, err := token.New(token.Config{
		AuthURL:      cfg.Backend.AuthURL,
		ClientID:     cfg.Backend.ClientID,
		ClientSecret: secret,
	})
	if err != nil {
		return err
	}
	bearer, err := tokens.AccessToken(ctx)

Concurrent callers share one in-flight fetch. Tokens are refreshed once
they are within the expiry buffer.
*/
package security
