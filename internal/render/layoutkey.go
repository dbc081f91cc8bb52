package render

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// LayoutKey is a deterministic content hash over a render input. Equal input
// content yields equal keys; any token change changes the signature.
type LayoutKey string

// Key derives the LayoutKey for this input from {presetID, aspect, canonical
// token signature}. Token fields are serialized in a fixed order with an
// unambiguous separator so that no two distinct token sets collide on
// concatenation.
func (in Input) Key() LayoutKey {
	var b strings.Builder
	b.WriteString(in.PresetID)
	b.WriteByte(0x1f)
	b.WriteString(string(in.Aspect))
	for _, pair := range []struct{ name, value string }{
		{TokenDisplayName, in.Tokens.DisplayName},
		{TokenTagline, in.Tokens.Tagline},
		{"accentColorHex", in.Tokens.AccentColorHex},
		{TokenCity, in.Tokens.City},
		{TokenLocalTime, in.Tokens.LocalTime},
		{TokenWeatherEmoji, in.Tokens.WeatherEmoji},
		{TokenWeatherText, in.Tokens.WeatherText},
	} {
		b.WriteByte(0x1f)
		b.WriteString(pair.name)
		b.WriteByte('=')
		b.WriteString(pair.value)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return LayoutKey(hex.EncodeToString(sum[:]))
}
