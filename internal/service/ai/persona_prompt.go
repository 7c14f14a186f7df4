package ai

import (
	"fmt"

	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
)

// SystemInstruction describes the companion the model should play.
func SystemInstruction(character persona.CharacterType, personality persona.Personality) string {
	return fmt.Sprintf(`You are an AI %s with a %s personality. You communicate naturally and concisely,
keeping responses friendly and engaging while maintaining appropriate boundaries. Your responses are brief
(1-2 sentences) but meaningful, showing genuine interest in the conversation.`,
		persona.RoleFor(character),
		personality.Traits(),
	)
}

// BuildReplyPrompt combines the system instruction with the user's message.
func BuildReplyPrompt(character persona.CharacterType, personality persona.Personality, message string) string {
	return fmt.Sprintf("%s\n\nUser message: %q\n\nYour response:", SystemInstruction(character, personality), message)
}
