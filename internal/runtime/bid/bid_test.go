package bid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/bidgate/internal/runtime/errors"
	"github.com/drblury/bidgate/internal/runtime/jsoncodec"
)

func TestDecode(t *testing.T) {
	req, err := Decode([]byte(`{"id":"r1","site":{"domain":"example.com"},"device":{"lmt":0,"ip":"8.8.8.8"},"ext":{"x":1}}`))
	require.NoError(t, err)

	assert.Equal(t, "r1", req.ID)
	require.NotNil(t, req.Site)
	assert.Nil(t, req.Site.ID)
	assert.Equal(t, "example.com", req.Site.Domain)
	assert.Nil(t, req.App)
	assert.Nil(t, req.User)
	ip, ok := req.Device.IPAddress()
	assert.True(t, ok)
	assert.Equal(t, "8.8.8.8", ip)
	assert.False(t, req.Device.LimitsAdTracking())
}

func TestDecode_AbsentVersusEmpty(t *testing.T) {
	req, err := Decode([]byte(`{"id":"r1","app":{"bundle":"b"},"device":{"ip":"","ua":null}}`))
	require.NoError(t, err)

	ip, ok := req.Device.IPAddress()
	assert.True(t, ok, "empty ip is still present")
	assert.Empty(t, ip)
	assert.Nil(t, req.Device.UA, "null decodes as absent")
	assert.Nil(t, req.Device.OS)
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"whitespace":     "  \n",
		"invalid json":   `{"id":`,
		"trailing data":  `{"id":"r1"} {"id":"r2"}`,
		"null":           `null`,
		"array":          `[{"id":"r1"}]`,
		"string":         `"r1"`,
		"wrong id type":  `{"id":42}`,
		"wrong lmt type": `{"id":"r1","device":{"lmt":"yes"}}`,
		"wrong site":     `{"id":"r1","site":"example.com"}`,
		"wrong alias":    `{"id":"r1","device":{"limitAdTracking":"yes"}}`,
		"wrong device":   `{"id":"r1","device":[]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req, err := Decode([]byte(body))
			assert.Nil(t, req)
			assert.ErrorIs(t, err, errors.ErrMalformedPayload)
		})
	}
}

func TestDecode_DeviceAliases(t *testing.T) {
	tests := []struct {
		name string
		body string
		lmt  int
		ua   *string
	}{
		{"openrtb names", `{"lmt":1,"ua":"curl"}`, 1, String("curl")},
		{"long names", `{"limitAdTracking":1,"userAgent":"curl"}`, 1, String("curl")},
		{"lmt wins", `{"lmt":0,"limitAdTracking":1}`, 0, nil},
		{"ua wins", `{"ua":"a","userAgent":"b"}`, 0, String("a")},
		{"neither", `{"ip":"8.8.8.8"}`, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Decode([]byte(`{"id":"r1","site":{"domain":"d"},"device":` + tt.body + `}`))
			require.NoError(t, err)
			require.NotNil(t, req.Device)
			assert.Equal(t, tt.lmt, req.Device.LMT)
			assert.Equal(t, tt.ua, req.Device.UA)
		})
	}
}

func TestEncode_UsesOpenRTBDeviceNames(t *testing.T) {
	req, err := Decode([]byte(`{"id":"r1","app":{"bundle":"b"},"device":{"limitAdTracking":1,"userAgent":"curl"}}`))
	require.NoError(t, err)
	assert.True(t, req.Device.LimitsAdTracking())

	data, err := Encode(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"r1","app":{"bundle":"b"},"device":{"lmt":1,"ua":"curl"}}`, string(data))
}

func TestEncode_OmitsAbsentOptionals(t *testing.T) {
	req := &BidRequest{
		ID:     "r1",
		Site:   &Site{Domain: "example.com", ID: String("")},
		Device: &Device{LMT: 0},
	}
	data, err := Encode(req)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, jsoncodec.Unmarshal(data, &wire))
	assert.NotContains(t, wire, "app")
	assert.NotContains(t, wire, "user")
	assert.NotContains(t, wire["device"], "ip")
	assert.Equal(t, "", wire["site"].(map[string]any)["id"])
}

func TestDeviceHelpers(t *testing.T) {
	var nilDevice *Device
	assert.False(t, nilDevice.LimitsAdTracking())
	_, ok := nilDevice.IPAddress()
	assert.False(t, ok)
	assert.False(t, nilDevice.HasPrefix("10.10."))

	d := &Device{LMT: 1, IP: String("10.10.1.2")}
	assert.True(t, d.LimitsAdTracking())
	assert.True(t, d.HasPrefix("192.168.", "10.10."))
	assert.False(t, d.HasPrefix("10.1.1.", ""))

	assert.False(t, (&Device{LMT: 2}).LimitsAdTracking())
}

func TestInventory(t *testing.T) {
	var nilReq *BidRequest
	assert.False(t, nilReq.HasInventory())
	assert.Equal(t, InventoryNone, nilReq.InventoryKind())

	assert.Equal(t, InventoryNone, (&BidRequest{}).InventoryKind())
	assert.Equal(t, InventoryApp, (&BidRequest{App: &App{}}).InventoryKind())
	assert.Equal(t, InventorySite, (&BidRequest{Site: &Site{}, App: &App{}}).InventoryKind())
	assert.True(t, (&BidRequest{App: &App{}}).HasInventory())
}
