package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenSource hands out client-credentials tokens for one operator. The
// oauth2 reuse wrapper caches the token until shortly before it expires.
type tokenSource struct {
	provider string
	src      oauth2.TokenSource
}

// newTokenSource builds a source that posts to tokenURL with HTTP basic auth.
// headers are added to every token request; MTN wants its subscription key
// there as well.
func newTokenSource(provider string, client *http.Client, tokenURL, id, secret string, headers map[string]string) *tokenSource {
	cfg := clientcredentials.Config{
		ClientID:     strings.TrimSpace(id),
		ClientSecret: strings.TrimSpace(secret),
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	hc := client
	if len(headers) > 0 {
		hc = &http.Client{
			Timeout:   client.Timeout,
			Transport: &headerTransport{base: client.Transport, headers: headers},
		}
	}
	// the fetch is bounded by hc.Timeout, not by the caller's context
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
	return &tokenSource{provider: provider, src: cfg.TokenSource(ctx)}
}

func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := ts.src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", &ProviderError{Provider: ts.provider, HTTPStatus: re.Response.StatusCode, Body: string(re.Body)}
		}
		return "", fmt.Errorf("%s token: %w", ts.provider, err)
	}
	return tok.AccessToken, nil
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		if v != "" {
			r.Header.Set(k, v)
		}
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}
