package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// RunStdio serves newline-delimited JSON-RPC over a reader/writer pair,
// the transport Claude-Desktop-style hosts spawn subprocesses with. It
// returns when the reader reaches EOF or the context is canceled.
func (s *Server) RunStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Tool results can carry large raw WHOIS blobs either way.
	const maxLine = 16 * 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	var writeMu sync.Mutex
	respond := func(resp *jsonrpcResponse) error {
		if resp == nil {
			return nil
		}
		body, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_, err = fmt.Fprintf(w, "%s\n", body)
		return err
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var req jsonrpcRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			if err := respond(rpcError(&jsonrpcRequest{}, codeParseError, "parse error")); err != nil {
				return err
			}
			continue
		}
		if err := respond(s.dispatch(ctx, &req)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
