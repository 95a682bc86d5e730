package backend

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the edge of the share QR code in pixels.
const QRSize = 256

// ShareReference is everything the Result screen needs to hand a photo to a
// guest. It is built from the persisted id alone.
type ShareReference struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	DownloadName string `json:"download_name"`
	Text         string `json:"text"`
	QRCode       []byte `json:"-"` // PNG
}

// ShareReference builds the share descriptor for id. Repeated calls with the
// same id return identical values.
func (c *Client) ShareReference(id string) (ShareReference, error) {
	if id == "" {
		return ShareReference{}, fmt.Errorf("share reference: empty id")
	}
	u := c.photoURL(c.publicURL, id)
	png, err := qrcode.Encode(u, qrcode.Medium, QRSize)
	if err != nil {
		return ShareReference{}, fmt.Errorf("share reference: encode qr: %w", err)
	}
	return ShareReference{
		ID:           id,
		URL:          u,
		DownloadName: c.DownloadName(id),
		Text:         fmt.Sprintf("Photo %s: %s", id, u),
		QRCode:       png,
	}, nil
}
