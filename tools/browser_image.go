package tools

import (
	"bytes"
	"image"
	"image/color/palette"
	"image/draw"
	"image/png"
)

func decodePNG(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

func toPaletted(src image.Image) *image.Paletted {
	bounds := src.Bounds()
	dst := image.NewPaletted(bounds, palette.WebSafe)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	return dst
}
