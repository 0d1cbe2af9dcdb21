package soundboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmojiString(t *testing.T) {
	tests := []struct {
		name  string
		emoji *Emoji
		want  string
	}{
		{"nil", nil, ""},
		{"unicode", &Emoji{Name: "📯"}, "📯"},
		{"custom", &Emoji{Name: "party", ID: "42"}, "<:party:42>"},
		{"custom without name", &Emoji{ID: "42"}, "<:_:42>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.emoji.String())
		})
	}
}

func TestUnknownSoundName(t *testing.T) {
	assert.Equal(t, "Unknown Sound (abc)", UnknownSoundName("abc"))
}
