package diff

import "context"

// StringChanResult holds a single diff result from a string comparison.
// It contains both the difference type (NEW/OLD) and the actual string value.
type StringChanResult struct {
	// D indicates whether the string is NEW (only in sequence B) or OLD (only in sequence A)
	D Delta
	// S contains the actual string value that differs between sequences
	S string
}

// StringResultChan creates a channel-based result processing system for string diffs.
// It returns a StringResultFunc that can be passed to diff.Strings() and a channel
// for consuming the results in a separate goroutine. This enables parallel processing
// where the diff operation runs in one goroutine while results are processed in another.
//
// The returned function stops with ctx.Err() once ctx is done, so a consumer
// that quits early must cancel ctx. The caller is responsible for closing the
// returned channel when the diff returned.
func StringResultChan(ctx context.Context) (StringResultFunc, chan *StringChanResult) {
	c := make(chan *StringChanResult, 1)
	f := func(d Delta, s string) error {
		select {
		case c <- &StringChanResult{D: d, S: s}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f, c
}
