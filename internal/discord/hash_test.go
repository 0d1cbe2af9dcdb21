package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestHashCommands(t *testing.T) {
	a := &discordgo.ApplicationCommand{ID: "1", Name: "join", Description: "Join", Type: discordgo.ChatApplicationCommand}
	b := &discordgo.ApplicationCommand{ID: "2", Name: "leave", Description: "Leave", Type: discordgo.ChatApplicationCommand}

	h := hashCommands([]*discordgo.ApplicationCommand{a, b})
	assert.Equal(t, h, hashCommands([]*discordgo.ApplicationCommand{b, a}), "order must not matter")

	// IDs and versions are assigned by Discord and ignored
	a2 := *a
	a2.ID, a2.Version = "99", "7"
	assert.Equal(t, h, hashCommands([]*discordgo.ApplicationCommand{&a2, b}))

	a3 := *a
	a3.Description = "Join your voice channel"
	assert.NotEqual(t, h, hashCommands([]*discordgo.ApplicationCommand{&a3, b}))

	assert.NotEqual(t, h, hashCommands([]*discordgo.ApplicationCommand{a}))
}
