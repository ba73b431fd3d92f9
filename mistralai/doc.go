// Package mistralai is a typed client for the Mistral AI chat-completion and
// embeddings endpoints.
//
// Design goals:
//   - Plain value types: requests and responses are structs mirroring the wire
//     format. They hold no mutable shared state and are safe to pass between goroutines.
//   - Explicit transport split: ChatCompletion is synchronous, ChatCompletionStream
//     returns a ChunkStream. The request's Stream flag must match the call; a mismatch
//     is rejected before any network I/O.
//   - Tolerant decoding: unknown roles, finish reasons and tool-choice modes decode to
//     an explicit Unknown variant instead of failing.
//   - Injected transport: base URL, auth, timeouts and retries live in an httpx.Client
//     that callers may supply; non-2xx responses go through a pluggable ErrorHandler.
package mistralai
