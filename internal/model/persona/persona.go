package persona

import (
	"strings"

	"github.com/samber/lo"
)

// CharacterType 标识用户选择的伴侣角色。
type CharacterType string

const (
	Girlfriend CharacterType = "AI-GF"
	Boyfriend  CharacterType = "AI-BF"
)

// Personality 是回复语气的分类标签。
type Personality string

const (
	Romantic   Personality = "romantic"
	Funny      Personality = "funny"
	Supportive Personality = "supportive"
)

// FallbackPersonality is used whenever classification cannot produce a label.
const FallbackPersonality = Supportive

// Personalities lists the labels the classifier may answer with.
func Personalities() []Personality {
	return []Personality{Romantic, Funny, Supportive}
}

// ParsePersonality normalises raw classifier output into a known label.
func ParsePersonality(raw string) (Personality, bool) {
	normalized := Personality(strings.ToLower(strings.Trim(strings.TrimSpace(raw), ".!\"'")))
	if lo.Contains(Personalities(), normalized) {
		return normalized, true
	}
	return "", false
}

// Traits 描述该语气在系统提示中的性格短语。
func (p Personality) Traits() string {
	switch p {
	case Romantic:
		return "caring and affectionate"
	case Funny:
		return "playful and humorous"
	default:
		return "supportive and understanding"
	}
}

// Persona captures the companion attributes exposed to the frontend.
type Persona struct {
	ID          CharacterType `json:"id"`
	Name        string        `json:"name"`
	Role        string        `json:"role"`
	Title       string        `json:"title"`
	OpeningLine string        `json:"openingLine"`
}

// Seed provides the two companion personas.
func Seed() []Persona {
	return []Persona{
		{
			ID:          Girlfriend,
			Name:        "AI Girlfriend",
			Role:        "girlfriend",
			Title:       "Your caring companion",
			OpeningLine: "Hey you! I was hoping you'd drop by. How was your day?",
		},
		{
			ID:          Boyfriend,
			Name:        "AI Boyfriend",
			Role:        "boyfriend",
			Title:       "Your easy-going companion",
			OpeningLine: "There you are. Tell me everything, I've got time.",
		},
	}
}

// RoleFor returns the role word used in prompts for a character type.
func RoleFor(character CharacterType) string {
	if character == Girlfriend {
		return "girlfriend"
	}
	return "boyfriend"
}
