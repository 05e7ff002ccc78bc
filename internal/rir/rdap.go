package rir

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/openrdap/rdap"
)

// RDAPClient abstracts RDAP lookups for testing. Queries are pinned to
// the backend's RDAP server rather than the public bootstrap, so an
// explicitly requested registry is the one actually consulted.
type RDAPClient interface {
	LookupAutnum(ctx context.Context, b *Backend, asn int) (*rdap.Autnum, error)
	LookupIP(ctx context.Context, b *Backend, ip string) (*rdap.IPNetwork, error)
	LookupDomain(ctx context.Context, b *Backend, domain string) (*rdap.Domain, error)
}

// defaultRDAPClient uses the openrdap library.
type defaultRDAPClient struct {
	http      *http.Client
	userAgent string
}

// NewRDAPClient returns an RDAPClient with the configured overall timeout
// and outbound User-Agent.
func NewRDAPClient(timeout time.Duration, userAgent string) RDAPClient {
	return &defaultRDAPClient{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (c *defaultRDAPClient) do(ctx context.Context, b *Backend, typ rdap.RequestType, query string) (*rdap.Response, error) {
	if b.RDAPBase == "" {
		return nil, Errorf(ErrUnsupported, b.Code, "no RDAP endpoint")
	}
	server, err := url.Parse(b.RDAPBase)
	if err != nil {
		return nil, WrapErr(ErrBackend, b.Code, err, "rdap base")
	}
	client := &rdap.Client{HTTP: c.http, UserAgent: c.userAgent}
	req := &rdap.Request{
		Type:   typ,
		Query:  query,
		Server: server,
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		cet, known := rdapErrorType(err)
		switch {
		case known && cet == rdap.ObjectDoesNotExist:
			return nil, Errorf(ErrNotFound, b.Code, "%s", query)
		case ctx.Err() != nil || isTimeout(err):
			return nil, WrapErr(ErrTimeout, b.Code, err, query)
		default:
			return nil, WrapErr(ErrBackend, b.Code, err, "rdap "+query)
		}
	}
	return resp, nil
}

func (c *defaultRDAPClient) LookupAutnum(ctx context.Context, b *Backend, asn int) (*rdap.Autnum, error) {
	resp, err := c.do(ctx, b, rdap.AutnumRequest, fmt.Sprintf("%d", asn))
	if err != nil {
		return nil, err
	}
	an, ok := resp.Object.(*rdap.Autnum)
	if !ok {
		return nil, Errorf(ErrBackend, b.Code, "unexpected RDAP response type for AS%d", asn)
	}
	return an, nil
}

func (c *defaultRDAPClient) LookupIP(ctx context.Context, b *Backend, ip string) (*rdap.IPNetwork, error) {
	resp, err := c.do(ctx, b, rdap.IPRequest, ip)
	if err != nil {
		return nil, err
	}
	ipNet, ok := resp.Object.(*rdap.IPNetwork)
	if !ok {
		return nil, Errorf(ErrBackend, b.Code, "unexpected RDAP response type for IP %s", ip)
	}
	return ipNet, nil
}

func (c *defaultRDAPClient) LookupDomain(ctx context.Context, b *Backend, domain string) (*rdap.Domain, error) {
	resp, err := c.do(ctx, b, rdap.DomainRequest, domain)
	if err != nil {
		return nil, err
	}
	d, ok := resp.Object.(*rdap.Domain)
	if !ok {
		return nil, Errorf(ErrBackend, b.Code, "unexpected RDAP response type for domain %s", domain)
	}
	return d, nil
}

// rdapErrorType extracts the openrdap client error type, tolerating both
// value and pointer error shapes.
func rdapErrorType(err error) (rdap.ClientErrorType, bool) {
	var v rdap.ClientError
	if errors.As(err, &v) {
		return v.Type, true
	}
	var p *rdap.ClientError
	if errors.As(err, &p) {
		return p.Type, true
	}
	return 0, false
}
