package discord

import (
	"sort"

	"github.com/bwmarrin/discordgo"
)

// Bits the pinned discordgo names differently across releases, or not at all.
const (
	permissionManageGuild            int64 = 1 << 5
	permissionManageExpressions      int64 = 1 << 30
	permissionUseApplicationCommands int64 = 1 << 31
	permissionUseSoundboard          int64 = 1 << 42
	permissionCreateExpressions      int64 = 1 << 43
	permissionUseExternalSounds      int64 = 1 << 45
	permissionSendVoiceMessages      int64 = 1 << 46

	permissionAll int64 = 1<<47 - 1
)

var permissionNames = map[int64]string{
	discordgo.PermissionCreateInstantInvite:  "Create Instant Invite",
	discordgo.PermissionKickMembers:          "Kick Members",
	discordgo.PermissionBanMembers:           "Ban Members",
	discordgo.PermissionAdministrator:        "Administrator",
	discordgo.PermissionManageChannels:       "Manage Channels",
	permissionManageGuild:                    "Manage Server",
	discordgo.PermissionAddReactions:         "Add Reactions",
	discordgo.PermissionViewAuditLogs:        "View Audit Logs",
	discordgo.PermissionViewChannel:          "View Channel",
	discordgo.PermissionSendMessages:         "Send Messages",
	discordgo.PermissionSendTTSMessages:      "Send TTS Messages",
	discordgo.PermissionManageMessages:       "Manage Messages",
	discordgo.PermissionEmbedLinks:           "Embed Links",
	discordgo.PermissionAttachFiles:          "Attach Files",
	discordgo.PermissionReadMessageHistory:   "Read Message History",
	discordgo.PermissionMentionEveryone:      "Mention Everyone",
	discordgo.PermissionUseExternalEmojis:    "Use External Emojis",
	permissionUseApplicationCommands:         "Use Application Commands",
	discordgo.PermissionVoicePrioritySpeaker: "Priority Speaker",
	discordgo.PermissionVoiceStreamVideo:     "Stream Video",
	discordgo.PermissionVoiceConnect:         "Connect",
	discordgo.PermissionVoiceSpeak:           "Speak",
	discordgo.PermissionVoiceMuteMembers:     "Mute Members",
	discordgo.PermissionVoiceDeafenMembers:   "Deafen Members",
	discordgo.PermissionVoiceMoveMembers:     "Move Members",
	discordgo.PermissionVoiceUseVAD:          "Use Voice Activity",
	discordgo.PermissionChangeNickname:       "Change Nickname",
	discordgo.PermissionManageNicknames:      "Manage Nicknames",
	discordgo.PermissionManageRoles:          "Manage Roles",
	discordgo.PermissionManageWebhooks:       "Manage Webhooks",
	permissionManageExpressions:              "Manage Expressions",
	permissionUseSoundboard:                  "Use Soundboard",
	permissionCreateExpressions:              "Create Expressions",
	permissionUseExternalSounds:              "Use External Sounds",
	permissionSendVoiceMessages:              "Send Voice Messages",
}

// requiredPermissions are checked per guild on startup.
var requiredPermissions = []int64{
	discordgo.PermissionViewChannel,
	discordgo.PermissionSendMessages,
	discordgo.PermissionReadMessageHistory,
	permissionUseExternalSounds,
	discordgo.PermissionVoiceConnect,
	discordgo.PermissionVoiceSpeak,
}

// guildPermissions computes member's guild-level permissions from @everyone and
// the member's roles. Owners and administrators get everything.
func guildPermissions(g *discordgo.Guild, member *discordgo.Member) int64 {
	if g == nil || member == nil {
		return 0
	}
	if member.User != nil && member.User.ID == g.OwnerID {
		return permissionAll
	}

	roles := make(map[string]struct{}, len(member.Roles))
	for _, id := range member.Roles {
		roles[id] = struct{}{}
	}

	var perms int64
	for _, r := range g.Roles {
		if _, ok := roles[r.ID]; ok || r.ID == g.ID {
			perms |= r.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return permissionAll
	}
	return perms
}

// permissionList names every known bit set in perms, sorted.
func permissionList(perms int64) []string {
	var out []string
	for bit, name := range permissionNames {
		if perms&bit == bit {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// missingPermissions names the required bits absent from perms, in check order.
func missingPermissions(perms int64) []string {
	var out []string
	for _, bit := range requiredPermissions {
		if perms&bit != bit {
			out = append(out, permissionNames[bit])
		}
	}
	return out
}
