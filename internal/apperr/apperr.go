// Package apperr defines the error taxonomy shared across components.
// Library-level errors are translated into these sentinels at each
// component boundary so the orchestrator and server never see raw
// provider or storage errors.
package apperr

import "errors"

var (
	// ErrConfig marks missing or invalid required settings. Blocks startup.
	ErrConfig = errors.New("invalid configuration")

	// ErrUnreadableDocument marks a file whose text extraction yielded no
	// content. Per-file, does not abort batch ingestion.
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrCorruptIndex marks an on-disk vector index that cannot be read.
	// Recoverable by rebuilding from retained uploads.
	ErrCorruptIndex = errors.New("corrupt vector index")

	// ErrEmbedderMismatch marks an index built with a different embedding
	// model than the one configured. Querying across embedding spaces
	// silently degrades relevance, so it is refused outright.
	ErrEmbedderMismatch = errors.New("index embedder mismatch")

	// ErrProviderUnreachable marks a network failure reaching the LLM
	// provider within the bounded timeout.
	ErrProviderUnreachable = errors.New("llm provider unreachable")

	// ErrModelNotFound marks a model name not registered on the local
	// inference server.
	ErrModelNotFound = errors.New("model not found")

	// ErrAuthentication marks rejected cloud credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRateLimited marks provider throttling that persisted through the
	// bounded retry.
	ErrRateLimited = errors.New("rate limited by provider")
)
