package tickets

import (
	"net/url"
	"strconv"
)

const defaultQRSize = 300

// QRURL builds the URL of an external renderer that draws data as a PNG QR code.
func QRURL(base, data string, size int) (string, error) {
	if size <= 0 {
		size = defaultQRSize
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("data", data)
	q.Set("format", "png")
	dim := strconv.Itoa(size)
	q.Set("size", dim+"x"+dim)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
