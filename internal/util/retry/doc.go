// Package retry provides backoff driven retries and status polling.
//
// [WithExponentialBackoff] retries an operation that fails transiently, such
// as a provider call against a locked resource. [Poll] repeatedly evaluates a
// condition until it holds, a [Fatal] error stops it, or its timeout elapses.
// Both stop immediately on errors wrapped with [Fatal].
package retry
