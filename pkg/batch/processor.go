// Package batch runs the encryption pipeline over many files concurrently.
// Each file gets its own independent pipeline instance with its own derived
// keys and I/O handles; nothing is shared between workers.
package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/goseal/goseal/internal/fileutil"
	"github.com/goseal/goseal/pkg/engine"
	"github.com/goseal/goseal/pkg/secret"
)

// DefaultSuffix is appended to encrypted file names and stripped on
// decryption.
const DefaultSuffix = ".gsl"

// Options configures a batch run. Files must already be resolved; the batch
// layer never walks directories or prompts.
type Options struct {
	// Action is applied to every file.
	Action engine.Action `validate:"oneof=1 2"`

	// Password is shared across all files; each file still gets a fresh
	// salt and keys. The caller keeps ownership and wipes it afterwards.
	Password *secret.Text `validate:"required"`

	// Files are the input paths to process.
	Files []string `validate:"min=1"`

	// Parallel bounds the number of files in flight at once.
	Parallel int `validate:"gte=1"`

	// EncryptSuffix is appended to outputs on encryption and stripped on
	// decryption.
	EncryptSuffix string

	// DecryptSuffix is appended to outputs on decryption after stripping
	// EncryptSuffix.
	DecryptSuffix string

	// Delete removes the input file after successful processing.
	Delete bool

	// PreserveTimestamps copies the source modification time to outputs.
	PreserveTimestamps bool

	// Quiet suppresses per-file progress lines.
	Quiet bool

	// Progress and Errors receive per-file reporting. They default to
	// os.Stdout and os.Stderr.
	Progress io.Writer
	Errors   io.Writer

	// Engine options forwarded to every pipeline run.
	Engine []engine.Option
}

// Processor coordinates the workers of one batch run.
type Processor struct {
	opts    Options
	results chan Result
}

// New validates opts, fills in defaults, and returns a ready Processor.
func New(opts Options) (*Processor, error) {
	if opts.Parallel == 0 {
		opts.Parallel = runtime.NumCPU()
	}

	if opts.EncryptSuffix == "" {
		opts.EncryptSuffix = DefaultSuffix
	}

	if opts.Progress == nil {
		opts.Progress = os.Stdout
	}

	if opts.Errors == nil {
		opts.Errors = os.Stderr
	}

	if err := validator.New().Struct(opts); err != nil {
		return nil, fmt.Errorf("validating batch options: %w", err)
	}

	return &Processor{
		opts:    opts,
		results: make(chan Result, len(opts.Files)),
	}, nil
}

// Run processes all files and blocks until every worker and the reporter
// finished. The returned error is the first per-file failure; Stats always
// reflects the full run.
func (p *Processor) Run() (Stats, error) {
	start := time.Now()

	group := errgroup.Group{}
	group.SetLimit(p.opts.Parallel)

	done := make(chan struct{})

	var stats Stats

	go func() {
		defer close(done)

		for result := range p.results {
			if result.Err != nil {
				stats.Errored++

				fmt.Fprintf(p.opts.Errors, "Error processing %q: %v\n", result.Input, result.Err)

				continue
			}

			stats.Processed++
			stats.Bytes += result.Bytes

			if !p.opts.Quiet {
				fmt.Fprintf(p.opts.Progress, "Processed %q -> %q\n", result.Input, result.Output)
			}

			if p.opts.Delete {
				if err := os.Remove(result.Input); err != nil {
					fmt.Fprintf(p.opts.Errors, "Error deleting %q: %v\n", result.Input, err)
				}
			}
		}
	}()

	for _, file := range p.opts.Files {
		group.Go(func() error {
			outPath := p.outputPath(file)

			n, err := p.processFile(file, outPath)
			if err != nil {
				p.results <- Result{Input: file, Err: err}

				return err
			}

			p.results <- Result{Input: file, Output: outPath, Bytes: n}

			return nil
		})
	}

	err := group.Wait()

	close(p.results)
	<-done

	stats.Elapsed = time.Since(start)

	if err != nil {
		return stats, fmt.Errorf("processing files: %w", err)
	}

	return stats, nil
}

// processFile runs one independent pipeline for a single file.
func (p *Processor) processFile(filename, outPath string) (int64, error) {
	n, err := engine.RunFile(p.opts.Action, p.opts.Password, filename, outPath, p.opts.Engine...)
	if err != nil {
		return 0, err
	}

	if p.opts.PreserveTimestamps {
		info, err := os.Stat(filename)
		if err == nil {
			err = fileutil.PreserveTimes(outPath, info.ModTime())
		}

		if err != nil {
			return n, fmt.Errorf("preserving timestamps: %w", err)
		}
	}

	return n, nil
}

// outputPath derives the output file name from the input and the configured
// suffixes.
func (p *Processor) outputPath(filename string) string {
	ext := p.opts.EncryptSuffix

	if p.opts.Action == engine.Decrypt {
		filename = strings.TrimSuffix(filename, p.opts.EncryptSuffix)
		ext = p.opts.DecryptSuffix
	}

	return filepath.Join(filepath.Dir(filename),
		filepath.Base(filename)+ext)
}
