package protocol

import "io"

type Reader interface {
	Read() (Command, error)
}

// CommandsReader reads from a fixed list of commands.
type CommandsReader struct {
	Commands []Command
	n        int
}

func (c *CommandsReader) Read() (Command, error) {
	if c.n == len(c.Commands) {
		return Command{}, io.EOF
	}

	c.n++
	return c.Commands[c.n-1], nil
}
