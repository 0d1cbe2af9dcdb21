package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/internal/soundboard"
)

// eventVoiceChannelEffectSend is not modelled by discordgo; it arrives as a raw *discordgo.Event.
const eventVoiceChannelEffectSend = "VOICE_CHANNEL_EFFECT_SEND"

// snowflake accepts an ID encoded either as a JSON string or as a number.
// Built-in sounds use small integer IDs and are sometimes sent unquoted.
type snowflake string

func (s *snowflake) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = snowflake(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("snowflake: %w", err)
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return fmt.Errorf("snowflake %s: %w", n, err)
	}
	*s = snowflake(n.String())
	return nil
}

type effectPayload struct {
	GuildID   snowflake `json:"guild_id"`
	ChannelID snowflake `json:"channel_id"`
	UserID    snowflake `json:"user_id"`
	SoundID   snowflake `json:"sound_id"`
	Emoji     *struct {
		ID   snowflake `json:"id"`
		Name string    `json:"name"`
	} `json:"emoji"`
}

// decodeEffect turns the raw VOICE_CHANNEL_EFFECT_SEND payload into an Effect.
func decodeEffect(raw json.RawMessage, received time.Time) (soundboard.Effect, error) {
	var p effectPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return soundboard.Effect{}, fmt.Errorf("decode %s: %w", eventVoiceChannelEffectSend, err)
	}
	ev := soundboard.Effect{
		GuildID:   string(p.GuildID),
		ChannelID: string(p.ChannelID),
		UserID:    string(p.UserID),
		SoundID:   string(p.SoundID),
		Timestamp: received,
	}
	if p.Emoji != nil && (p.Emoji.Name != "" || p.Emoji.ID != "") {
		ev.Emoji = &soundboard.Emoji{Name: p.Emoji.Name, ID: string(p.Emoji.ID)}
	}
	return ev, nil
}

type soundPayload struct {
	SoundID   snowflake `json:"sound_id"`
	Name      string    `json:"name"`
	Volume    float64   `json:"volume"`
	EmojiID   snowflake `json:"emoji_id"`
	EmojiName string    `json:"emoji_name"`
	GuildID   snowflake `json:"guild_id"`
}

// decodeSounds parses the body of GET /guilds/{id}/soundboard-sounds. Unavailable
// sounds (lost boost tier) are kept so their past plays still resolve.
func decodeSounds(body []byte) ([]soundboard.Sound, error) {
	var resp struct {
		Items []soundPayload `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode soundboard sounds: %w", err)
	}
	out := make([]soundboard.Sound, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.SoundID == "" {
			continue
		}
		out = append(out, soundboard.Sound{
			ID:           string(it.SoundID),
			Name:         it.Name,
			EmojiName:    it.EmojiName,
			EmojiID:      string(it.EmojiID),
			Volume:       it.Volume,
			OwnerGuildID: string(it.GuildID),
		})
	}
	return out, nil
}

// SoundSource fetches guild soundboards over the REST API.
type SoundSource struct {
	dg *discordgo.Session
}

func NewSoundSource(dg *discordgo.Session) *SoundSource {
	return &SoundSource{dg: dg}
}

func (s *SoundSource) FetchSounds(ctx context.Context, guildID string) ([]soundboard.Sound, error) {
	endpoint := discordgo.EndpointGuild(guildID) + "/soundboard-sounds"
	body, err := s.dg.RequestWithBucketID("GET", endpoint, nil, endpoint, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", endpoint, err)
	}
	return decodeSounds(body)
}
