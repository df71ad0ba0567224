package types

import "errors"

// Error kinds from the error-handling design. These are sentinels checked
// with errors.Is, wrapped by call sites with fmt.Errorf("...: %w", err) the
// same way the teacher's contract client wraps every failure.
var (
	// ErrTransportTransient marks a single RPC failure recovered by retry
	// inside with_retry; it should not normally escape the transport pool.
	ErrTransportTransient = errors.New("transport: transient failure")

	// ErrTransportRateLimited marks a 429 or rate-limit-shaped error message;
	// the offending endpoint is put in cooldown and the call retried with a
	// longer backoff.
	ErrTransportRateLimited = errors.New("transport: rate limited")

	// ErrTransportExhausted is returned to the caller once with_retry has
	// exhausted retry_attempts across healthy endpoints.
	ErrTransportExhausted = errors.New("transport: all retries exhausted")

	// ErrWsHandshakeFailed marks a WS endpoint that failed to reach
	// Connected within initial_connection_retries attempts.
	ErrWsHandshakeFailed = errors.New("transport: ws handshake failed")

	// ErrWsFrameError marks a malformed or undecodable WS frame; treated as
	// a disconnect and categorized for adaptive backoff.
	ErrWsFrameError = errors.New("transport: ws frame error")

	// ErrDecode marks an ABI-decode failure on one multicall result; the
	// offending quote is dropped, the rest of the batch proceeds.
	ErrDecode = errors.New("decode: abi decode failed")

	// ErrMathDomain marks a math-domain violation (zero reserves,
	// non-finite price); callers must return a zero-profit result, never
	// propagate Inf/NaN.
	ErrMathDomain = errors.New("math: domain error")

	// ErrConfig marks a configuration problem (missing address, malformed
	// hex); fatal for the affected chain worker only.
	ErrConfig = errors.New("config: invalid configuration")

	// ErrShutdownRequested marks a deliberate, external shutdown signal.
	ErrShutdownRequested = errors.New("shutdown requested")

	// ErrCrossDexTriangularUnsupported is returned when a triangular cycle's
	// legs span more than one router address.
	ErrCrossDexTriangularUnsupported = errors.New("triangular: cross-dex triangular arbitrage not supported")

	// ErrUnknownDex is the sentinel used in place of a null/missing DEX
	// lookup when computing fees for an unrecognized DEX name.
	ErrUnknownDex = errors.New("dex: unknown dex")
)
