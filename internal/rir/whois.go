package rir

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// RawQuerier issues single-shot line-based WHOIS queries.
type RawQuerier interface {
	QueryRaw(ctx context.Context, b *Backend, query string) (string, error)
}

// WhoisClient speaks the legacy WHOIS protocol: open a TCP connection,
// write the query line, read until the peer closes the stream or a read
// deadline elapses. One connection per query; nothing is retried.
type WhoisClient struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// NewWhoisClient returns a WhoisClient with the configured timeouts.
func NewWhoisClient(connectTimeout, readTimeout time.Duration) *WhoisClient {
	return &WhoisClient{ConnectTimeout: connectTimeout, ReadTimeout: readTimeout}
}

// QueryRaw performs one WHOIS exchange against the backend and returns
// the response as a single text blob. A connect or read timeout maps to
// ErrTimeout; other transport failures map to ErrBackend. The caller's
// context deadline is honored on top of the per-phase timeouts.
func (c *WhoisClient) QueryRaw(ctx context.Context, b *Backend, query string) (string, error) {
	addr := net.JoinHostPort(b.WhoisHost, strconv.Itoa(b.WhoisPort))
	d := net.Dialer{Timeout: c.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if isTimeout(err) || ctx.Err() != nil {
			return "", WrapErr(ErrTimeout, b.Code, err, "connect "+addr)
		}
		return "", WrapErr(ErrBackend, b.Code, err, "connect "+addr)
	}
	defer conn.Close()

	line := strings.TrimSpace(query) + "\r\n"
	_ = conn.SetWriteDeadline(c.deadline(ctx, c.ConnectTimeout))
	if _, err := conn.Write([]byte(line)); err != nil {
		return "", WrapErr(ErrBackend, b.Code, err, "write "+addr)
	}

	var sb strings.Builder
	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return "", WrapErr(ErrTimeout, b.Code, err, "read "+addr)
		}
		_ = conn.SetReadDeadline(c.deadline(ctx, c.ReadTimeout))
		n, err := conn.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if isTimeout(err) {
				return "", WrapErr(ErrTimeout, b.Code, err, "read "+addr)
			}
			return "", WrapErr(ErrBackend, b.Code, err, "read "+addr)
		}
	}
	return sb.String(), nil
}

// deadline computes the next I/O deadline: the per-phase timeout, capped
// by the caller's context deadline when that is sooner. Writes use the
// connect timeout, reads the read timeout.
func (c *WhoisClient) deadline(ctx context.Context, timeout time.Duration) time.Time {
	dl := time.Now().Add(timeout)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		dl = ctxDL
	}
	return dl
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
