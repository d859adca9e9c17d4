package mcphost

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// RecoveryAction tells Client.CallTool whether a failed content-processor
// call is worth a second attempt, and if so, whether the attempt needs a
// fresh session first.
type RecoveryAction int

const (
	// NoRetry means the failure won't be fixed by retrying: a bad request,
	// an auth rejection, or a timeout that suggests a genuinely slow tool.
	NoRetry RecoveryAction = iota
	// RetryNewSession means the transport itself is suspect — the session
	// should be torn down and reconnected before the retry.
	RetryNewSession
)

// Timing and retry budget for talking to a content-processor server.
const (
	// MaxRetries is the number of attempts after the first failure.
	MaxRetries = 1

	// ReinitTimeout bounds recreating a session during recovery.
	ReinitTimeout = 10 * time.Second

	// OperationTimeout bounds a single CallTool/ListTools round trip. Set
	// generously since some content processors (large log scans, archive
	// extraction) are legitimately slow; the ingest pipeline's own
	// iteration deadline is the hard ceiling above this.
	OperationTimeout = 90 * time.Second

	// RetryBackoffMin and RetryBackoffMax bound the jittered delay before a
	// CallTool retry.
	RetryBackoffMin = 250 * time.Millisecond
	RetryBackoffMax = 750 * time.Millisecond

	// MCPInitTimeout bounds a server's transport dial plus handshake.
	MCPInitTimeout = 30 * time.Second

	// MCPHealthPingTimeout bounds a single heartbeat's ListTools call.
	MCPHealthPingTimeout = 5 * time.Second

	// MCPHealthInterval is how often HealthMonitor sweeps every server.
	MCPHealthInterval = 15 * time.Second
)

// ClassifyError decides how Client.CallTool should react to a failed call.
func ClassifyError(err error) RecoveryAction {
	if err == nil {
		return NoRetry
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NoRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NoRetry
		}
		return RetryNewSession
	}

	if isConnectionError(err) {
		return RetryNewSession
	}

	if isMCPProtocolError(err) {
		return NoRetry
	}

	return NoRetry
}

// isConnectionError recognizes transport-level failures that a session
// recreation can plausibly fix: the stdio child process died, the socket
// dropped, DNS couldn't resolve the server. Checked by string match because
// the SDK's transports don't wrap these in a typed error.
func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"connection closed",
		"no such host",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// isMCPProtocolError recognizes a JSON-RPC error the MCP SDK surfaced for
// the call itself (bad params, unknown method) rather than the transport —
// reconnecting won't change the server's answer, so these are never
// retried.
func isMCPProtocolError(err error) bool {
	var wireErr *jsonrpc.Error
	if !errors.As(err, &wireErr) {
		return false
	}
	switch wireErr.Code {
	case jsonrpc.CodeParseError,
		jsonrpc.CodeInvalidRequest,
		jsonrpc.CodeMethodNotFound,
		jsonrpc.CodeInvalidParams:
		return true
	default:
		return false
	}
}
