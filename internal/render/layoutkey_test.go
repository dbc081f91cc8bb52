package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayoutKeyDeterministic(t *testing.T) {
	in := Input{
		PresetID: "lower-third",
		Aspect:   AspectWidescreen,
		Tokens:   Tokens{DisplayName: "Ada", Tagline: "Host", AccentColorHex: "#4ea1ff"},
	}

	assert.Equal(t, in.Key(), in.Key(), "same input must hash to the same key")
	assert.Len(t, string(in.Key()), 64, "key is a hex-encoded sha256")
}

func TestLayoutKeySensitivity(t *testing.T) {
	base := Input{
		PresetID: "lower-third",
		Aspect:   AspectWidescreen,
		Tokens:   Tokens{DisplayName: "Ada", AccentColorHex: "#4ea1ff"},
	}

	tests := []struct {
		name   string
		mutate func(Input) Input
	}{
		{"preset change", func(in Input) Input { in.PresetID = "nameplate-card"; return in }},
		{"aspect change", func(in Input) Input { in.Aspect = AspectStandard; return in }},
		{"display name change", func(in Input) Input { in.Tokens.DisplayName = "Grace"; return in }},
		{"accent change", func(in Input) Input { in.Tokens.AccentColorHex = "#ff0000"; return in }},
		{"local time change", func(in Input) Input { in.Tokens.LocalTime = "9:41 AM"; return in }},
		{"weather change", func(in Input) Input { in.Tokens.WeatherText = "Sunny"; return in }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base.Key(), tt.mutate(base).Key())
		})
	}
}

func TestLayoutKeyNoConcatenationCollision(t *testing.T) {
	// "Ada" + "Host" must not collide with "AdaH" + "ost".
	a := Input{PresetID: "p", Tokens: Tokens{DisplayName: "Ada", Tagline: "Host"}}
	b := Input{PresetID: "p", Tokens: Tokens{DisplayName: "AdaH", Tagline: "ost"}}
	assert.NotEqual(t, a.Key(), b.Key())
}
