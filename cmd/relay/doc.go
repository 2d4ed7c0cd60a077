// Package main runs the in-memory HTTP relay used by pairlink during
// development and tests. It keeps a bounded window of sealed payloads per
// topic and serves them to long-polling subscribers.
//
// HTTP API
//
//	GET /healthz
//	    Health check used by clients on Start.
//
//	POST /topics/{topic}  { "sender": ID, "payload": base64 }
//	    Append a payload to {topic}.
//
//	GET /topics/{topic}?cursor=N&client=ID&wait=D
//	    Return messages with sequence >= N, blocking up to D (max 60s) when
//	    none are available. A negative cursor returns only the current head.
//	    Messages published by client ID are not returned to it.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Each topic keeps the most recent --retention messages.
//   - A lightweight access log records method, path, status and duration.
//   - The default listen address is :8080.
//
// The relay only ever sees topics and sealed payloads. Topics are hashes of
// public keys or derived session keys, and payloads are AEAD ciphertext.
package main
