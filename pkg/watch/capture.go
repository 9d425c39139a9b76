package watch

import (
	"bytes"
	"io"
)

type captured struct {
	data []byte
	err  error
}

// capturer drains a stream on its own goroutine and hands the whole text
// over exactly once.
type capturer struct {
	done   chan captured
	joined bool
}

func startCapture(r io.Reader) *capturer {
	c := &capturer{
		done: make(chan captured, 1),
	}

	go func() {
		var buf bytes.Buffer
		_, err := io.Copy(&buf, r)
		c.done <- captured{data: buf.Bytes(), err: err}
	}()

	return c
}

// join blocks until the stream reached EOF or failed. A read failure is
// returned as is, never as an empty result.
func (c *capturer) join() (string, error) {
	if c.joined {
		return "", errJoined
	}
	c.joined = true

	res := <-c.done
	if res.err != nil {
		return "", res.err
	}
	return string(res.data), nil
}
