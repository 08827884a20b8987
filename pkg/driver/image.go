package driver

// Image is a fixed-shape 2-D measurement grid used for camera buffers.
// Pixels are stored row-major as float64 so the same buffer type serves
// grayscale-packed color frames and depth maps.
type Image struct {
	Width  int
	Height int
	Pixels []float64
}

// NewImage returns a zeroed image of the given dimensions.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pixels: make([]float64, width*height),
	}
}

// Resize reshapes the image, reallocating only when the pixel count changes,
// and zeroes the contents.
func (im *Image) Resize(width, height int) {
	if len(im.Pixels) != width*height {
		im.Pixels = make([]float64, width*height)
	} else {
		for i := range im.Pixels {
			im.Pixels[i] = 0
		}
	}
	im.Width = width
	im.Height = height
}

// At returns the pixel at (x, y).
func (im *Image) At(x, y int) float64 {
	return im.Pixels[y*im.Width+x]
}

// Set stores the pixel at (x, y).
func (im *Image) Set(x, y int, v float64) {
	im.Pixels[y*im.Width+x] = v
}

// CopyFrom copies the shape and contents of src into the image.
func (im *Image) CopyFrom(src *Image) {
	im.Resize(src.Width, src.Height)
	copy(im.Pixels, src.Pixels)
}
