package models

// EditRequest is the body of PUT /projects/:id. At least one field must be
// present; cross-field and metadata-dependent rules live in the validation
// package, the tags only bound individual values.
type EditRequest struct {
	Trim   *TrimRequest `json:"trim,omitempty"`
	Crop   *CropRequest `json:"crop,omitempty"`
	Rotate int          `json:"rotate,omitempty" validate:"omitempty,oneof=-270 -180 -90 90 180 270"`
	Scale  int          `json:"scale,omitempty" validate:"omitempty,min=1"`
}

type TrimRequest struct {
	Start float64 `json:"start" validate:"min=0"`
	End   float64 `json:"end" validate:"min=0"`
}

type CropRequest struct {
	X      int `json:"x" validate:"min=0"`
	Y      int `json:"y" validate:"min=0"`
	Width  int `json:"width" validate:"min=1"`
	Height int `json:"height" validate:"min=1"`
}

// Spec converts the request into the internal edit spec.
func (r EditRequest) Spec() EditSpec {
	spec := EditSpec{Rotate: r.Rotate, Scale: r.Scale}
	if r.Trim != nil {
		spec.Trim = &Trim{Start: r.Trim.Start, End: r.Trim.End}
	}
	if r.Crop != nil {
		spec.Crop = &Crop{X: r.Crop.X, Y: r.Crop.Y, Width: r.Crop.Width, Height: r.Crop.Height}
	}
	return spec
}

// ThumbnailsRequest is the query of GET /projects/:id/thumbnails. The crop
// rectangle for previews rides along as x/y/width/height parameters; all
// four must be present together.
type ThumbnailsRequest struct {
	Type     string   `form:"type" validate:"required,oneof=timeline preview"`
	Amount   int      `form:"amount" validate:"omitempty,min=1"`
	Position *float64 `form:"position"`
	CropX    *int     `form:"x"`
	CropY    *int     `form:"y"`
	CropW    *int     `form:"width"`
	CropH    *int     `form:"height"`
	Rotate   int      `form:"rotate" validate:"omitempty,oneof=-270 -180 -90 0 90 180 270"`
}

// CropSpec assembles the optional crop rectangle. The second return is false
// when only some of the four parameters were supplied.
func (r ThumbnailsRequest) CropSpec() (*Crop, bool) {
	present := 0
	for _, v := range []*int{r.CropX, r.CropY, r.CropW, r.CropH} {
		if v != nil {
			present++
		}
	}
	if present == 0 {
		return nil, true
	}
	if present != 4 {
		return nil, false
	}
	return &Crop{X: *r.CropX, Y: *r.CropY, Width: *r.CropW, Height: *r.CropH}, true
}
