package extract

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// imageDataURL decodes any supported image and re-encodes it as an inline
// PNG data URL.
func imageDataURL(r io.Reader) (string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return "", newError(KindFileParse, http.StatusUnprocessableEntity, err, "could not decode image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", newError(KindFileParse, http.StatusUnprocessableEntity, err, "could not re-encode %s image", format)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
