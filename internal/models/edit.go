package models

// Trim cuts the video to the [Start, End] window, in seconds.
type Trim struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Crop cuts a Width x Height rectangle with its top-left corner at (X, Y).
type Crop struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// EditSpec is the set of non-destructive edits applied in one pass.
// Zero values mean "not requested" for Rotate and Scale.
type EditSpec struct {
	Trim   *Trim `json:"trim,omitempty"`
	Crop   *Crop `json:"crop,omitempty"`
	Rotate int   `json:"rotate,omitempty"`
	Scale  int   `json:"scale,omitempty"`
}

// Empty reports whether no edit field is present.
func (s EditSpec) Empty() bool {
	return s.Trim == nil && s.Crop == nil && s.Rotate == 0 && s.Scale == 0
}
