package lagonlike

import (
	"context"
	"fmt"
)

// Fetch performs an outbound request through the host's fetch
// capability and wraps the fixed-shape result as a Response with a
// text body. It is the handler-facing fetch polyfill; the context must
// be the one the bridge handed to the handler (or one derived from
// it), since that is where the Host rides.
func Fetch(ctx context.Context, resource string, init FetchInit) (*Response, error) {
	res, err := HostFrom(ctx).Fetch(resource, init)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", resource, err)
	}

	body := EmptyBody()
	if res.Body != "" {
		body = TextBody(res.Body)
	}
	return NewResponse(res.Status, res.Headers, body), nil
}
