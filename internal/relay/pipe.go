// Package relay forwards an upstream byte stream to a downstream consumer
// without buffering or reframing it.
package relay

import (
	"context"
	"io"
	"sync"
)

// Pipe returns a reader that yields the bytes of src verbatim and in order.
//
// A single goroutine copies src into a synchronous io.Pipe, so at most one
// read buffer is in flight: when the consumer stops reading, reads from src
// stop too. src is closed when the copy finishes, when the consumer closes the
// returned reader, or when ctx is done, whichever happens first. After ctx is
// done, reads fail with ctx.Err().
func Pipe(ctx context.Context, src io.ReadCloser) io.ReadCloser {
	pr, pw := io.Pipe()

	var closeOnce sync.Once
	closeSrc := func() {
		closeOnce.Do(func() { _ = src.Close() })
	}

	stop := context.AfterFunc(ctx, func() {
		_ = pw.CloseWithError(context.Cause(ctx))
		closeSrc()
	})

	go func() {
		defer closeSrc()
		defer stop()
		_, err := io.Copy(pw, src)
		// nil err closes the writer with io.EOF.
		_ = pw.CloseWithError(err)
	}()

	return &reader{PipeReader: pr, closeSrc: closeSrc}
}

// reader closes src as soon as the consumer closes, even while the copier is
// blocked inside src.Read.
type reader struct {
	*io.PipeReader
	closeSrc func()
}

func (r *reader) Close() error {
	err := r.PipeReader.Close()
	r.closeSrc()
	return err
}
