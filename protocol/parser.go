package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Parser reads commands from a script, one per line.
//
// Blank lines and anything after a '#' are skipped.
type Parser struct {
	br   *bufio.Reader
	line int
}

func NewParser(r io.Reader) *Parser {
	if br, ok := r.(*bufio.Reader); ok {
		return &Parser{br: br}
	}

	return &Parser{br: bufio.NewReader(r)}
}

func (p *Parser) Read() (Command, error) {
	for {
		s, err := p.br.ReadString('\n')
		if err == io.EOF && s != "" {
			err = nil
		}
		if err != nil {
			return Command{}, err
		}
		p.line++

		s = strings.SplitN(s, "#", 2)[0]
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		cmd, err := ParseLine(s)
		if err != nil {
			return Command{}, fmt.Errorf("line %d: %w", p.line, err)
		}
		return cmd, nil
	}
}
