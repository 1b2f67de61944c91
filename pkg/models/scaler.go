package models

// MinMaxScaler rescales values into [0, 1] over the fitted range.
//
// The sequence model is trained and queried on scaled values only; the
// scaler's fitted range is therefore part of the artifact contract and is
// persisted alongside the model weights. A constant series (zero range)
// scales to 0 and inverts back to the fitted minimum.
type MinMaxScaler struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Fitted bool    `json:"fitted"`
}

// Fit records the value range of the series.
func (s *MinMaxScaler) Fit(values []float64) {
	if len(values) == 0 {
		return
	}
	s.Min = values[0]
	s.Max = values[0]
	for _, v := range values[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Fitted = true
}

// Transform scales a slice of values into [0, 1].
func (s *MinMaxScaler) Transform(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.TransformOne(v)
	}
	return out
}

// TransformOne scales a single value into [0, 1].
func (s *MinMaxScaler) TransformOne(v float64) float64 {
	if s.Max == s.Min {
		return 0
	}
	return (v - s.Min) / (s.Max - s.Min)
}

// InverseOne maps a scaled value back to the original range.
func (s *MinMaxScaler) InverseOne(v float64) float64 {
	if s.Max == s.Min {
		return s.Min
	}
	return v*(s.Max-s.Min) + s.Min
}
