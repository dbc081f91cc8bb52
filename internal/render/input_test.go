package render

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokensGet(t *testing.T) {
	tokens := Tokens{
		DisplayName: "Ada",
		Tagline:     "Host",
		City:        "Lisbon",
		LocalTime:   "9:41 AM",
	}

	assert.Equal(t, "Ada", tokens.Get(TokenDisplayName))
	assert.Equal(t, "Host", tokens.Get(TokenTagline))
	assert.Equal(t, "Lisbon", tokens.Get(TokenCity))
	assert.Equal(t, "9:41 AM", tokens.Get(TokenLocalTime))
	assert.Equal(t, "", tokens.Get(TokenWeatherText), "unset token is empty")
	assert.Equal(t, "", tokens.Get("bogus"), "unknown binding is empty")
}

func TestAccentColor(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}

	tests := []struct {
		name     string
		hex      string
		expected color.RGBA
	}{
		{"with hash prefix", "#4ea1ff", color.RGBA{0x4e, 0xa1, 0xff, 255}},
		{"without prefix", "4ea1ff", color.RGBA{0x4e, 0xa1, 0xff, 255}},
		{"surrounding whitespace", "  #ff0000 ", color.RGBA{255, 0, 0, 255}},
		{"empty falls back to white", "", white},
		{"too short falls back", "#fff", white},
		{"garbage falls back", "#zzzzzz", white},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokens{AccentColorHex: tt.hex}
			assert.Equal(t, tt.expected, tokens.AccentColor())
		})
	}
}
