// Package engine implements the streaming encryption pipeline: it turns a
// password and an input stream into an authenticated container, and verifies
// and decrypts such containers back to the exact original bytes.
// Inputs of unbounded size are processed one chunk at a time.
//
// Run is the single entry point for streams; RunFile adds path resolution
// and atomic output for file-to-file operation. The engine never prompts,
// prints, or retries; callers resolve the action, password, and streams.
package engine
