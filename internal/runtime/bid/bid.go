// Package bid defines the inbound bid request model and its decoder.
//
// Optional members are pointers: nil means the field was absent on the wire,
// a non-nil pointer to "" means it was present and empty. JSON null decodes
// as absent.
package bid

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/drblury/bidgate/internal/runtime/errors"
	"github.com/drblury/bidgate/internal/runtime/jsoncodec"
)

// Inventory kinds reported by BidRequest.InventoryKind.
const (
	InventorySite = "site"
	InventoryApp  = "app"
	InventoryNone = "none"
)

// BidRequest is a single advertising bid request.
type BidRequest struct {
	ID     string  `json:"id"`
	Site   *Site   `json:"site,omitempty"`
	App    *App    `json:"app,omitempty"`
	Device *Device `json:"device,omitempty"`
	User   *User   `json:"user,omitempty"`
}

// Site describes web inventory.
type Site struct {
	ID     *string `json:"id,omitempty"`
	Domain string  `json:"domain"`
}

// App describes in-app inventory.
type App struct {
	Bundle string `json:"bundle"`
}

// Device describes the end-user device.
type Device struct {
	IP  *string `json:"ip,omitempty"`
	OS  *string `json:"os,omitempty"`
	LMT int     `json:"lmt"`
	UA  *string `json:"ua,omitempty"`
}

// UnmarshalJSON decodes the OpenRTB names and also accepts limitAdTracking
// and userAgent. When both spellings are sent, lmt and ua win.
func (d *Device) UnmarshalJSON(data []byte) error {
	type wire Device
	var aux struct {
		wire
		LMT             *int    `json:"lmt"`
		LimitAdTracking *int    `json:"limitAdTracking"`
		UserAgent       *string `json:"userAgent"`
	}
	if err := jsoncodec.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = Device(aux.wire)
	switch {
	case aux.LMT != nil:
		d.LMT = *aux.LMT
	case aux.LimitAdTracking != nil:
		d.LMT = *aux.LimitAdTracking
	}
	if d.UA == nil {
		d.UA = aux.UserAgent
	}
	return nil
}

// User identifies the end user.
type User struct {
	ID string `json:"id"`
}

// Decode parses a payload into a BidRequest. Any failure wraps
// errors.ErrMalformedPayload.
func Decode(data []byte) (*BidRequest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", errors.ErrMalformedPayload)
	}
	if !jsoncodec.Valid(trimmed) {
		return nil, fmt.Errorf("%w: invalid json", errors.ErrMalformedPayload)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: top-level value must be an object", errors.ErrMalformedPayload)
	}
	var req BidRequest
	if err := jsoncodec.Unmarshal(trimmed, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	return &req, nil
}

// Encode serialises the request in its wire form.
func Encode(req *BidRequest) ([]byte, error) {
	return jsoncodec.Marshal(req)
}

// LimitsAdTracking reports whether the device opted out of ad tracking.
func (d *Device) LimitsAdTracking() bool {
	return d != nil && d.LMT == 1
}

// IPAddress returns the device IP and whether it was present.
func (d *Device) IPAddress() (string, bool) {
	if d == nil || d.IP == nil {
		return "", false
	}
	return *d.IP, true
}

// HasInventory reports whether the request carries a site or an app.
func (r *BidRequest) HasInventory() bool {
	return r != nil && (r.Site != nil || r.App != nil)
}

// InventoryKind names the inventory the request is for. Site wins when both
// are present.
func (r *BidRequest) InventoryKind() string {
	switch {
	case r == nil:
		return InventoryNone
	case r.Site != nil:
		return InventorySite
	case r.App != nil:
		return InventoryApp
	default:
		return InventoryNone
	}
}

// HasPrefix reports whether the device IP is present and starts with any of
// prefixes.
func (d *Device) HasPrefix(prefixes ...string) bool {
	ip, ok := d.IPAddress()
	if !ok {
		return false
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(ip, p) {
			return true
		}
	}
	return false
}

// String returns a pointer to s, for building requests in code.
func String(s string) *string {
	return &s
}
