// Package capture validates and normalizes inbound screenshot capture requests
// before they are forwarded to the rendering service.
package capture

import "strings"

// DefaultFormat is used for the response content type when the caller omits format.
const DefaultFormat = "png"

// Request is a validated, normalized capture request. Optional fields are nil
// when the caller did not supply them so that only submitted parameters are
// forwarded upstream.
type Request struct {
	URL            string   `json:"url"`
	Format         *string  `json:"format,omitempty"`
	WindowWidth    *int     `json:"window_width,omitempty"`
	WindowHeight   *int     `json:"window_height,omitempty"`
	FullPage       *bool    `json:"full_page,omitempty"`
	DarkMode       *bool    `json:"dark_mode,omitempty"`
	ImageQuality   *int     `json:"image_quality,omitempty"`
	PixelDensity   *float64 `json:"pixel_density,omitempty"`
	WaitForTimeout *int     `json:"wait_for_timeout,omitempty"`
	WaitForNetwork *string  `json:"wait_for_network,omitempty"`
}

// ImageFormat returns the requested format or DefaultFormat.
func (r Request) ImageFormat() string {
	if r.Format == nil || *r.Format == "" {
		return DefaultFormat
	}
	return *r.Format
}

// ContentType is the media type relayed to the caller for a successful capture.
func (r Request) ContentType() string {
	return "image/" + r.ImageFormat()
}

// NormalizeURL trims the raw URL and forces the https scheme. Anything after
// the scheme is kept verbatim.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(u, "https://"):
		return u
	case strings.HasPrefix(u, "http://"):
		return "https://" + strings.TrimPrefix(u, "http://")
	default:
		return "https://" + u
	}
}

// Parse runs the capture schema against input and builds a Request from the
// validated values. The returned error is a *ValidationError when any field
// fails.
func Parse(input map[string]any) (Request, error) {
	values, err := Schema().Validate(input)
	if err != nil {
		return Request{}, err
	}

	req := Request{URL: values["url"].(string)}
	req.Format = stringValue(values, "format")
	req.WindowWidth = intValue(values, "window_width")
	req.WindowHeight = intValue(values, "window_height")
	req.FullPage = boolValue(values, "full_page")
	req.DarkMode = boolValue(values, "dark_mode")
	req.ImageQuality = intValue(values, "image_quality")
	req.PixelDensity = floatValue(values, "pixel_density")
	req.WaitForTimeout = intValue(values, "wait_for_timeout")
	req.WaitForNetwork = stringValue(values, "wait_for_network")
	return req, nil
}

func stringValue(values map[string]any, key string) *string {
	v, ok := values[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func intValue(values map[string]any, key string) *int {
	v, ok := values[key].(int64)
	if !ok {
		return nil
	}
	i := int(v)
	return &i
}

func boolValue(values map[string]any, key string) *bool {
	v, ok := values[key].(bool)
	if !ok {
		return nil
	}
	return &v
}

func floatValue(values map[string]any, key string) *float64 {
	switch v := values[key].(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	default:
		return nil
	}
}
