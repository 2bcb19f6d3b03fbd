package classifier

import (
	"fmt"
	"regexp"
	"strings"
)

// Turn is one message of prior conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ConversationStyle string

const (
	StyleBrief    ConversationStyle = "brief"
	StyleBalanced ConversationStyle = "balanced"
	StyleDetailed ConversationStyle = "detailed"
)

var styleWordTargets = map[ConversationStyle]int{
	StyleBrief:    150,
	StyleBalanced: 300,
	StyleDetailed: 500,
}

// WordTarget is the approximate narrative length for the style.
func (s ConversationStyle) WordTarget() int {
	if n, ok := styleWordTargets[s]; ok {
		return n
	}
	return styleWordTargets[StyleBalanced]
}

func (s ConversationStyle) Instruction() string {
	switch s {
	case StyleBrief:
		return fmt.Sprintf("The user prefers brief answers. Keep the response under %d words and lead with the bottom line.", s.WordTarget())
	case StyleDetailed:
		return fmt.Sprintf("The user wants depth. Aim for about %d words and walk through the reasoning.", s.WordTarget())
	default:
		return fmt.Sprintf("Aim for about %d words.", StyleBalanced.WordTarget())
	}
}

var (
	brevityPatterns = compileAll(
		`\b(brief|short|concise|quick|tl;?dr)\b`,
		`\b(less words?|fewer words?)\b`,
		`\b(cut (it|this) short)\b`,
		`\b(straight to the point)\b`,
		`\b(bottom line|key point)\b`,
		`\bmake (it|this|the answer) (more )?(brief|short|concise)\b`,
	)
	expansionPatterns = compileAll(
		`\b(more detail|elaborate|expand)\b`,
		`\b(tell me more|explain more)\b`,
		`\b(go deeper|dig deeper)\b`,
	)
)

const styleHistoryWindow = 5

// DetectStyle reads the current question first, then the recent user turns.
func DetectStyle(question string, history []Turn) ConversationStyle {
	q := strings.ToLower(question)
	if anyMatch(brevityPatterns, q) {
		return StyleBrief
	}
	if anyMatch(expansionPatterns, q) {
		return StyleDetailed
	}

	recent := history
	if len(recent) > styleHistoryWindow {
		recent = recent[len(recent)-styleHistoryWindow:]
	}
	brief, detailed := 0, 0
	for _, t := range recent {
		if t.Role != "user" {
			continue
		}
		text := strings.ToLower(t.Content)
		if anyMatch(brevityPatterns, text) {
			brief++
		}
		if anyMatch(expansionPatterns, text) {
			detailed++
		}
	}
	switch {
	case brief > detailed:
		return StyleBrief
	case detailed > brief:
		return StyleDetailed
	default:
		return StyleBalanced
	}
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
