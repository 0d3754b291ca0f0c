package batch

// Result is the outcome of processing a single file.
type Result struct {
	// Input file path
	Input string

	// Output file path
	Output string

	// Plaintext bytes processed
	Bytes int64

	// Any error that occurred during processing
	Err error
}
