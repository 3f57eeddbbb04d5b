// Package api provides HTTP client functionality for communicating with the
// Mataresit API. It handles authentication, request/response serialization
// and envelope decoding.
//
// # Executors
//
// [Client] performs exactly one HTTP round trip per call. Behaviour such as
// retrying is layered on by wrapping any [Executor]:
//
//	exec := api.WithRetry(client, api.DefaultRetryConfig())
//	var receipt Receipt
//	err := api.Do(ctx, exec, &api.Request{Method: "GET", Path: "/receipts/r1"}, &receipt)
//
// The API key is sent via the X-API-Key header on every request.
//
// # Retry Behavior
//
// [WithRetry] retries only 429 Too Many Requests. Before attempt n+1 it waits
// BaseDelay * 2^n, so with the default one second base the waits are 2s, 4s,
// 8s and so on. There is no jitter. When every attempt is rate limited the
// call fails with an error matching [apierrors.ErrMaxRetriesExceeded].
//
// # Error Handling
//
// All failures are *apierrors.Error values. HTTP failures carry the status
// code, the server's message and optional machine code; transport failures
// have a zero status code and wrap the underlying error.
package api
