// Package relay implements the broadcast engine.
//
// Each accepted connection resolves its identity once, is admitted to the
// connection registry and gets its own writer goroutine with a bounded send
// buffer. OnMessage wraps the payload in an envelope and enqueues it to every
// open connection in a registry snapshot without blocking, so a slow recipient
// never holds up the others. Disconnect is idempotent: close, error and
// shutdown may all fire for one connection but cleanup runs exactly once.
package relay
