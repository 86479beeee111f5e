package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Replay feeds saved build output from r through the same decoding as a
// live stream. End is called once when r is exhausted or fails.
func Replay(ctx context.Context, r io.Reader, encodingName string, feed LineFeed) error {
	enc, err := LookupEncoding(encodingName)
	if err != nil {
		return err
	}
	dec := newDecoder(enc)
	defer feed.End()

	buf := make([]byte, readSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			replaceNUL(buf[:n])
			if text := dec.decode(buf[:n], false); text != "" {
				feed.Feed(text)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading build log: %w", err)
		}
	}
	if text := dec.decode(nil, true); text != "" {
		feed.Feed(text)
	}
	return nil
}
