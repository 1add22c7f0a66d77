package protocol

import (
	"encoding/json"
	"errors"

	"github.com/mastercactapus/lasersim/coord"
)

// Path is one continuous laser-on polyline.
type Path []coord.Point

// Status is a snapshot of the machine state. Command responses and
// broadcasts share this format.
type Status struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	LaserOn bool    `json:"laser_on"`
	Speed   float64 `json:"speed"`
	History []Path  `json:"history"`
}

func (s Status) Pos() coord.Point { return coord.Point{X: s.X, Y: s.Y} }

type ErrorMessage struct {
	Error string `json:"error"`
}

// Encode returns the LF-terminated wire form of v.
func Encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeError returns the wire form of an error response.
func EncodeError(err error) []byte {
	data, _ := Encode(ErrorMessage{Error: err.Error()})
	return data
}

// Decode parses a single message into a *Status or an *ErrorMessage.
// A message is an error if and only if it carries an "error" field.
func Decode(data []byte) (interface{}, error) {
	var msg map[string]json.RawMessage
	err := json.Unmarshal(data, &msg)
	if err != nil {
		return nil, err
	}
	if msg["error"] != nil {
		var e ErrorMessage
		err = json.Unmarshal(data, &e)
		if err != nil {
			return nil, err
		}
		return &e, nil
	}
	if msg["x"] == nil || msg["y"] == nil {
		return nil, errors.New("unknown message: " + string(data))
	}

	var s Status
	err = json.Unmarshal(data, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
