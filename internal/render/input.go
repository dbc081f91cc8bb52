package render

import (
	"fmt"
	"image/color"
	"strings"
)

// Aspect is the aspect-ratio category an overlay is laid out for.
type Aspect string

const (
	AspectWidescreen Aspect = "widescreen" // 16:9
	AspectStandard   Aspect = "standard"   // 4:3
)

// Token names accepted by placement bindings.
const (
	TokenDisplayName  = "displayName"
	TokenTagline      = "tagline"
	TokenCity         = "city"
	TokenLocalTime    = "localTime"
	TokenWeatherEmoji = "weatherEmoji"
	TokenWeatherText  = "weatherText"
)

// Tokens carries the dynamic text values substituted into a preset.
// Optional fields are empty strings when unset.
type Tokens struct {
	DisplayName    string `json:"display_name" yaml:"display_name"`
	Tagline        string `json:"tagline,omitempty" yaml:"tagline,omitempty"`
	AccentColorHex string `json:"accent_color_hex" yaml:"accent_color_hex"`
	City           string `json:"city,omitempty" yaml:"city,omitempty"`
	LocalTime      string `json:"local_time,omitempty" yaml:"local_time,omitempty"`
	WeatherEmoji   string `json:"weather_emoji,omitempty" yaml:"weather_emoji,omitempty"`
	WeatherText    string `json:"weather_text,omitempty" yaml:"weather_text,omitempty"`
}

// Get resolves a token by placement binding name.
func (t Tokens) Get(name string) string {
	switch name {
	case TokenDisplayName:
		return t.DisplayName
	case TokenTagline:
		return t.Tagline
	case TokenCity:
		return t.City
	case TokenLocalTime:
		return t.LocalTime
	case TokenWeatherEmoji:
		return t.WeatherEmoji
	case TokenWeatherText:
		return t.WeatherText
	default:
		return ""
	}
}

// AccentColor parses AccentColorHex ("#RRGGBB" or "RRGGBB").
// Falls back to white on malformed input so a bad settings value
// never breaks rendering.
func (t Tokens) AccentColor() color.RGBA {
	s := strings.TrimPrefix(strings.TrimSpace(t.AccentColorHex), "#")
	if len(s) != 6 {
		return color.RGBA{255, 255, 255, 255}
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{255, 255, 255, 255}
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Input is the immutable per-tick renderer input: which preset to draw,
// for which aspect category, with which token values. The compositor treats
// it as opaque except for its role as a cache key.
type Input struct {
	PresetID string
	Aspect   Aspect
	Tokens   Tokens
}
