// Package admission implements the session and request-admission subsystem
// of the HavenKeep API: signed access/refresh token pairs, immediate
// cross-replica revocation, distributed sliding-window rate limiting,
// double-submit CSRF protection, atomically consumed one-time tokens, and a
// single-flight daily scheduler.
//
// The package exposes an Engine facade constructed from an explicit Config
// plus injected store handles (Redis for shared volatile state, the
// relational store for durable records). HTTP integration lives in the
// middleware subpackage.
package admission
