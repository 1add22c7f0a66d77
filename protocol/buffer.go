package protocol

import (
	"bytes"
	"io"
)

// Buffer encodes commands from a Reader as LF-terminated lines.
type Buffer struct {
	cr  Reader
	buf bytes.Buffer
	err error
}

var _ io.Reader = &Buffer{}

func NewBuffer(r Reader) *Buffer {
	return &Buffer{cr: r}
}

func (b *Buffer) Read(p []byte) (n int, err error) {
	var cmd Command
	for b.err == nil && b.buf.Len() < len(p) {
		cmd, b.err = b.cr.Read()
		if b.err != nil {
			break
		}
		b.buf.WriteString(cmd.String() + "\n")
	}

	if b.buf.Len() > 0 {
		return b.buf.Read(p)
	}
	return 0, b.err
}
