package commits

import (
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

const maxMessageRunes = 50

// MessageCleaner strips machine noise out of commit messages before they show
// up in notifications and activity views.
type MessageCleaner struct {
	conventionalExpr *regexp2.Regexp
	refExpressions   []*regexp2.Regexp
	mergeExpressions []*regexp2.Regexp
}

func NewMessageCleaner() *MessageCleaner {
	refPatterns := []string{
		`\s*\(#\d+\)\s*$`,   // trailing pull request reference
		`\s*#\d+\s*$`,       // trailing issue reference
		`\s*\[#?\d+\]\s*$`,  // trailing bracketed ticket reference
	}

	mergePatterns := []string{
		`^Merge (?:pull request|branch|remote-tracking branch) (?<what>\S+)(?: of \S+)?(?: from (?<from>\S+))?(?: into \S+)?\s*`,
		`^Revert "(?<title>.+)"$`,
	}

	compiledRefs := make([]*regexp2.Regexp, 0, len(refPatterns))
	for _, pattern := range refPatterns {
		compiledRefs = append(compiledRefs, regexp2.MustCompile(pattern, 0))
	}

	compiledMerges := make([]*regexp2.Regexp, 0, len(mergePatterns))
	for _, pattern := range mergePatterns {
		compiledMerges = append(compiledMerges, regexp2.MustCompile(pattern, 0))
	}

	return &MessageCleaner{
		conventionalExpr: regexp2.MustCompile(
			`(?i)^(?<type>feat|fix|docs|style|refactor|perf|test|build|ci|chore|revert)(?<scope>\([^)]*\))?!?:\s*(?<rest>.+)`, 0),
		refExpressions:   compiledRefs,
		mergeExpressions: compiledMerges,
	}
}

// Clean returns the first line of a commit message with conventional-commit
// prefixes, merge boilerplate and trailing issue references removed, capped
// at a display-friendly length.
func (mc *MessageCleaner) Clean(message string) string {
	text := message
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)

	for _, expr := range mc.mergeExpressions {
		match, _ := expr.FindStringMatch(text)
		if match == nil {
			continue
		}
		if title := strings.TrimSpace(match.GroupByName("title").String()); title != "" {
			text = title
			break
		}
		// a bare merge line carries nothing worth showing beyond the refs
		if trimmed, _ := expr.Replace(text, "", -1, 1); strings.TrimSpace(trimmed) != "" {
			text = strings.TrimSpace(trimmed)
		}
		break
	}

	if match, _ := mc.conventionalExpr.FindStringMatch(text); match != nil {
		if rest := strings.TrimSpace(match.GroupByName("rest").String()); rest != "" {
			text = rest
		}
	}

	for _, expr := range mc.refExpressions {
		if replaced, err := expr.Replace(text, "", -1, -1); err == nil {
			text = replaced
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = strings.TrimSpace(strings.SplitN(message, "\n", 2)[0])
	}

	if utf8.RuneCountInString(text) > maxMessageRunes {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:maxMessageRunes-1])) + "…"
	}

	return text
}
