package prompt

import (
	"regexp"
	"strings"
)

// Models wrap their payloads in XML-ish tags. When a response carries
// several occurrences of a tag the last one wins, matching the
// model's tendency to restate its final answer after reasoning text.
var (
	answerRe = regexp.MustCompile(`(?s)<answer>(.*?)</answer>`)
	replanRe = regexp.MustCompile(`(?s)<replan>(.*?)</replan>`)
	rewordRe = regexp.MustCompile(`(?s)<reworded_query>(.*?)</reworded_query>`)

	// Fenced code blocks, optionally language-tagged. [\s\S] spans
	// newlines without flipping the whole pattern to dotall.
	codeFenceRe = regexp.MustCompile("```" + `[a-zA-Z0-9]*\s*([\s\S]*?)` + "```")
)

func lastMatch(re *regexp.Regexp, s string) (string, bool) {
	matches := re.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return "", false
	}
	return strings.TrimSpace(matches[len(matches)-1][1]), true
}

// ExtractAnswer returns the content of the last <answer> tag.
func ExtractAnswer(s string) (string, bool) {
	return lastMatch(answerRe, s)
}

// ExtractReplan returns the content of the last <replan> tag. Presence
// of the tag means the model wants the plan redone.
func ExtractReplan(s string) (string, bool) {
	return lastMatch(replanRe, s)
}

// ExtractRewordedQuery returns the content of the last <reworded_query>
// tag.
func ExtractRewordedQuery(s string) (string, bool) {
	return lastMatch(rewordRe, s)
}

// ExtractCodeBlock returns the body of the last fenced code block.
func ExtractCodeBlock(s string) (string, bool) {
	return lastMatch(codeFenceRe, s)
}

// AnswerOrWhole returns the last <answer> content, falling back to the
// whole trimmed response when the tag is missing. An empty tag still
// counts as an answer.
func AnswerOrWhole(s string) string {
	if answer, ok := ExtractAnswer(s); ok {
		return answer
	}
	return strings.TrimSpace(s)
}
