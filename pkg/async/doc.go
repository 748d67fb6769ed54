// Package async provides safe concurrent execution primitives for background tasks.
//
// SafeGo executes a function in a goroutine with panic recovery, timeout
// enforcement and error logging. Use it instead of bare `go func()` for
// fire-and-forget work such as post-registration hooks.
package async
