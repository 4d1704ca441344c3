package wire

import "math"

func f32bits(v float32) uint32     { return math.Float32bits(v) }
func f64bits(v float64) uint64     { return math.Float64bits(v) }
func f32frombits(v uint32) float32 { return math.Float32frombits(v) }
func f64frombits(v uint64) float64 { return math.Float64frombits(v) }
