package tracking

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
)

// pixelPNG is the 1x1 transparent PNG served on every pixel fetch.
var pixelPNG []byte

func init() {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		panic("tracking: encoding pixel: " + err.Error())
	}
	pixelPNG = buf.Bytes()
}

// ServePixel writes the tracking pixel. Mail clients must never cache it,
// otherwise repeat opens stop reaching the server. Always responds 200.
func ServePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelPNG)
}
