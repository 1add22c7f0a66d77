package coord

import (
	"encoding/json"
	"errors"
	"math"
)

// MaxCoord is the limit of the work area on both axes.
const MaxCoord = 250.0

// Point is a position on the work area.
//
// It is encoded as a two element JSON array `[x,y]`.
type Point struct{ X, Y float64 }

func (p Point) Equal(b Point) bool {
	return p.X == b.X && p.Y == b.Y
}

// Add will add the target values to p.
func (p Point) Add(target Point) Point {
	p.X += target.X
	p.Y += target.Y
	return p
}

// Sub will subtract the target values from p.
func (p Point) Sub(target Point) Point {
	p.X -= target.X
	p.Y -= target.Y
	return p
}

func (p Point) Mul(val float64) Point {
	p.X *= val
	p.Y *= val
	return p
}

// Clamp constrains both axes to [-MaxCoord, MaxCoord].
func (p Point) Clamp() Point {
	p.X = Clamp(p.X)
	p.Y = Clamp(p.Y)
	return p
}

// Clamp constrains v to [-MaxCoord, MaxCoord].
func Clamp(v float64) float64 {
	return math.Max(-MaxCoord, math.Min(v, MaxCoord))
}

// Split will return a set of n evenly spaced points
// from p to the target. The last point is always target.
func (p Point) Split(target Point, n int) []Point {
	if n < 1 {
		return nil
	}
	step := target.Sub(p).Mul(1 / float64(n))

	res := make([]Point, n)
	for i := range res {
		res[i] = p.Add(step.Mul(float64(i + 1)))
	}
	res[n-1] = target

	return res
}

// Distance will return the 2D distance from p to the target.
func (p Point) Distance(target Point) float64 {
	return math.Hypot(target.X-p.X, target.Y-p.Y)
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var v []float64
	err := json.Unmarshal(data, &v)
	if err != nil {
		return err
	}
	if len(v) != 2 {
		return errors.New("point must have exactly 2 elements")
	}
	p.X, p.Y = v[0], v[1]
	return nil
}
