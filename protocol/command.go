package protocol

import "strconv"

// Verb identifies a command.
type Verb string

const (
	VerbMove      Verb = "MOVE"
	VerbSpeed     Verb = "SPEED"
	VerbLaser     Verb = "LASER"
	VerbClear     Verb = "CLEAR"
	VerbGetStatus Verb = "GET_STATUS"
)

// Command is a single parsed command line.
//
// X and Y are set for MOVE, Value for SPEED and On for LASER.
type Command struct {
	Verb Verb

	X, Y  float64
	Value float64
	On    bool
}

func Move(x, y float64) Command { return Command{Verb: VerbMove, X: x, Y: y} }
func Speed(v float64) Command { return Command{Verb: VerbSpeed, Value: v} }
func Laser(on bool) Command { return Command{Verb: VerbLaser, On: on} }
func Clear() Command { return Command{Verb: VerbClear} }
func GetStatus() Command { return Command{Verb: VerbGetStatus} }

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// String returns the command in wire format, without the line terminator.
func (c Command) String() string {
	switch c.Verb {
	case VerbMove:
		return string(c.Verb) + " " + formatFloat(c.X) + " " + formatFloat(c.Y)
	case VerbSpeed:
		return string(c.Verb) + " " + formatFloat(c.Value)
	case VerbLaser:
		if c.On {
			return string(c.Verb) + " ON"
		}
		return string(c.Verb) + " OFF"
	}
	return string(c.Verb)
}
