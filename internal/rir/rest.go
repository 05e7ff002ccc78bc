package rir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rirtools/whois-mcp/internal/rpsl"
)

// StructuredQuerier issues whois-resources style REST queries.
type StructuredQuerier interface {
	// GetObject fetches a single object by class and primary key.
	GetObject(ctx context.Context, b *Backend, class, key string) (*rpsl.Object, error)
	// Search runs a query-string search filtered to the given object classes.
	Search(ctx context.Context, b *Backend, query string, classes ...string) ([]rpsl.Object, error)
}

// RESTClient talks to whois-resources REST APIs (rest.db.ripe.net and
// compatible). Responses decode into rpsl.Objects so callers share one
// attribute model with the raw WHOIS path.
type RESTClient struct {
	HTTPClient *http.Client
	UserAgent  string
}

// NewRESTClient returns a RESTClient with the configured overall timeout
// and outbound User-Agent.
func NewRESTClient(timeout time.Duration, userAgent string) *RESTClient {
	return &RESTClient{
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
	}
}

// whois-resources JSON envelope: objects.object[].attributes.attribute[].
type wrsEnvelope struct {
	Objects struct {
		Object []wrsObject `json:"object"`
	} `json:"objects"`
}

type wrsObject struct {
	Type       string `json:"type"`
	Attributes struct {
		Attribute []wrsAttribute `json:"attribute"`
	} `json:"attributes"`
}

type wrsAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// GetObject fetches {RESTBase}/{source}/{class}/{key}.json. A backend
// without a REST base rejects the call with ErrUnsupported; 404 maps to
// ErrNotFound; any other non-2xx status or decode failure maps to
// ErrBackend.
func (c *RESTClient) GetObject(ctx context.Context, b *Backend, class, key string) (*rpsl.Object, error) {
	if b.RESTBase == "" {
		return nil, Errorf(ErrUnsupported, b.Code, "no structured REST endpoint")
	}
	u := fmt.Sprintf("%s/%s/%s/%s.json", b.RESTBase, b.RESTSource, class, url.PathEscape(key))
	objs, err := c.fetch(ctx, b, u)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, Errorf(ErrNotFound, b.Code, "%s %s", class, key)
	}
	return &objs[0], nil
}

// Search fetches {RESTBase}/search.json with query-string and type-filter
// parameters. An empty result set maps to ErrNotFound.
func (c *RESTClient) Search(ctx context.Context, b *Backend, query string, classes ...string) ([]rpsl.Object, error) {
	if b.RESTBase == "" {
		return nil, Errorf(ErrUnsupported, b.Code, "no structured REST endpoint")
	}
	q := url.Values{}
	q.Set("query-string", query)
	for _, cl := range classes {
		q.Add("type-filter", cl)
	}
	u := b.RESTBase + "/search.json?" + q.Encode()
	objs, err := c.fetch(ctx, b, u)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, Errorf(ErrNotFound, b.Code, "no match for %q", query)
	}
	return objs, nil
}

func (c *RESTClient) fetch(ctx context.Context, b *Backend, u string) ([]rpsl.Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, WrapErr(ErrBackend, b.Code, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if isTimeout(err) || ctx.Err() != nil {
			return nil, WrapErr(ErrTimeout, b.Code, err, u)
		}
		return nil, WrapErr(ErrBackend, b.Code, err, u)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, Errorf(ErrNotFound, b.Code, "%s", u)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, Errorf(ErrBackend, b.Code, "unexpected HTTP status %d from %s", resp.StatusCode, u)
	}

	var env wrsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, WrapErr(ErrBackend, b.Code, err, "decode "+u)
	}

	out := make([]rpsl.Object, 0, len(env.Objects.Object))
	for _, wo := range env.Objects.Object {
		var o rpsl.Object
		for _, a := range wo.Attributes.Attribute {
			o.Attributes = append(o.Attributes, rpsl.Attribute{Name: a.Name, Value: a.Value})
		}
		out = append(out, o)
	}
	return out, nil
}
