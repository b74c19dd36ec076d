// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"context"
	"net/url"
)

// WithAuth returns a Transport that forwards the credentials embedded in
// origURL to requests for the same host.
//
// If origURL has no user information or no host, WithAuth returns t itself.
// Otherwise, each request URL that has no user information of its own and
// whose host equals the host of origURL is rewritten to carry the user
// information of origURL before it is passed to t. All other URLs are passed
// through unchanged.
func WithAuth(t Transport, origURL string) Transport {
	u, err := url.Parse(origURL)
	if err != nil || u.User == nil || u.Host == "" {
		return t
	}
	return authTransport{base: t, host: u.Host, user: u.User}
}

type authTransport struct {
	base Transport
	host string
	user *url.Userinfo
}

func (a authTransport) rewrite(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User != nil || u.Host != a.host {
		return s
	}
	u.User = a.user
	return u.String()
}

func (a authTransport) Get(ctx context.Context, url string, opts GetOptions) (*Object, error) {
	return a.base.Get(ctx, a.rewrite(url), opts)
}

func (a authTransport) Post(ctx context.Context, url string, body any) (*Object, error) {
	return a.base.Post(ctx, a.rewrite(url), body)
}
