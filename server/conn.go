package server

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
)

// maxLineSize bounds a single command line.
const maxLineSize = 64 * 1024

// ErrLineTooLong is reported for a line over maxLineSize. The line is
// discarded and the connection stays usable.
var ErrLineTooLong = errors.New("line too long")

// conn is one client connection. It is both a command source and
// a broadcast observer.
type conn struct {
	rwc net.Conn
	br  *bufio.Reader

	wMx sync.Mutex
}

func newConn(rwc net.Conn) *conn {
	return &conn{
		rwc: rwc,
		br:  bufio.NewReaderSize(rwc, 4096),
	}
}

// Send writes a framed message. Writes from the command loop and from
// broadcasts never interleave.
func (c *conn) Send(msg []byte) error {
	c.wMx.Lock()
	defer c.wMx.Unlock()
	_, err := c.rwc.Write(msg)
	return err
}

// readLine returns the next LF-delimited line without its terminator.
// A final unterminated line is returned before io.EOF.
func (c *conn) readLine() (string, error) {
	var line []byte
	var tooLong bool
	for {
		frag, err := c.br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(frag) > maxLineSize+1 {
				tooLong = true
				line = nil
			} else {
				line = append(line, frag...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF && (len(line) > 0 || tooLong) {
			break
		}
		if err != nil {
			return "", err
		}
		break
	}
	if tooLong {
		return "", ErrLineTooLong
	}

	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line), nil
}

func (c *conn) Close() error {
	return c.rwc.Close()
}
