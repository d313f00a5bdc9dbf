package background

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/the-black-eagle/Thermalright-usblcd/panel"
)

// opaquer is implemented by most stdlib image types (NRGBA, RGBA,
// Paletted, ...); Opaque() reports whether every pixel has alpha 255.
type opaquer interface {
	Opaque() bool
}

// decodeAndResizeImage decodes a GIF, JPEG or PNG image (the stdlib
// decoders registered by this file's imports), resizes it to the
// panel's 320x240 with a high-quality Catmull-Rom resample, and returns it
// as BGR or BGRA bytes depending on whether the source actually carries
// transparency.
func decodeAndResizeImage(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	alpha := true
	if o, ok := src.(opaquer); ok {
		alpha = !o.Opaque()
	}

	dst := image.NewNRGBA(image.Rect(0, 0, panel.Width, panel.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	channels := 3
	if alpha {
		channels = 4
	}
	pix := make([]byte, panel.Width*panel.Height*channels)
	idx := 0
	for y := 0; y < panel.Height; y++ {
		rowOff := dst.PixOffset(0, y)
		for x := 0; x < panel.Width; x++ {
			o := rowOff + x*4
			r, g, b, a := dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2], dst.Pix[o+3]
			pix[idx], pix[idx+1], pix[idx+2] = b, g, r
			if alpha {
				pix[idx+3] = a
			}
			idx += channels
		}
	}
	return &Frame{Pix: pix, Channels: channels}, nil
}
