package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrArgCount       = errors.New("wrong number of arguments")
	ErrBadNumber      = errors.New("invalid number")
	ErrBadLaserValue  = errors.New("laser value must be ON or OFF")
)

var arity = map[Verb]int{
	VerbMove:      2,
	VerbSpeed:     1,
	VerbLaser:     1,
	VerbClear:     0,
	VerbGetStatus: 0,
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}
	return v, nil
}

// ParseLine parses a single command line. Surrounding whitespace
// and a trailing line terminator are ignored.
//
// Infinite MOVE coordinates are accepted (they clamp to the work area),
// NaN never is. SPEED range checks are left to the machine.
func ParseLine(line string) (cmd Command, err error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return cmd, ErrEmptyCommand
	}

	cmd.Verb = Verb(strings.ToUpper(parts[0]))
	n, ok := arity[cmd.Verb]
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, parts[0])
	}
	args := parts[1:]
	if len(args) != n {
		return Command{}, fmt.Errorf("%w: %s takes %d, got %d", ErrArgCount, cmd.Verb, n, len(args))
	}

	switch cmd.Verb {
	case VerbMove:
		cmd.X, err = parseNumber(args[0])
		if err != nil {
			return Command{}, err
		}
		cmd.Y, err = parseNumber(args[1])
		if err != nil {
			return Command{}, err
		}
	case VerbSpeed:
		cmd.Value, err = parseNumber(args[0])
		if err != nil {
			return Command{}, err
		}
	case VerbLaser:
		switch strings.ToUpper(args[0]) {
		case "ON":
			cmd.On = true
		case "OFF":
		default:
			return Command{}, fmt.Errorf("%w: %q", ErrBadLaserValue, args[0])
		}
	}

	return cmd, nil
}

// Parse parses a multi-line command script.
func Parse(data string) ([]Command, error) {
	r := NewParser(bytes.NewBufferString(data))
	var c []Command
	for {
		cmd, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		c = append(c, cmd)
	}
	return c, nil
}

func MustParse(data string) []Command {
	c, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return c
}
