package validation

import (
	"regexp"
	"strings"
)

var (
	// thinkBlock matches a leading reasoning block and whatever follows it.
	thinkBlock = regexp.MustCompile(`(?is)^\s*<(think|thinking|reasoning)>(.*?)</(?:think|thinking|reasoning)>\s*(.*)$`)

	// openThink matches a reasoning block that was never closed.
	openThink = regexp.MustCompile(`(?is)^\s*<(?:think|thinking|reasoning)>(.*)$`)

	// reasoningLeaks is the closed set of chain-of-thought openers.
	reasoningLeaks = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(okay|ok|alright|hmm+)[,.]?\s+(so\s+)?(the user|let me|i need|i should)`),
		regexp.MustCompile(`(?i)^let me (think|analyze|consider|figure|work through|break)`),
		regexp.MustCompile(`(?i)^let's (think|break this down|analyze|work through)`),
		regexp.MustCompile(`(?i)^i need to (think|figure out|analyze|consider|determine|work out)`),
		regexp.MustCompile(`(?i)^(first|firstly),?\s+(i need|i should|let me|i'll)`),
		regexp.MustCompile(`(?i)^the user (is asking|wants|asked|has asked|said)`),
		regexp.MustCompile(`(?i)^(thinking|reasoning|thought process|chain of thought)\s*:`),
	}

	// answerMarkers show a final answer follows the reasoning.
	answerMarkers = regexp.MustCompile(`(?i)(final answer|answer:|in summary|to summarize|so the answer is|therefore,)`)

	// metaSentence matches sentences that talk about the reasoning itself.
	metaSentence = regexp.MustCompile(`(?i)\b(the user|let me|let's|i need to|i should|i think|i'll|i will|hmm+|wait|okay|alright|maybe i)\b`)

	sentenceEnd = regexp.MustCompile(`([.!?])\s+`)
)

const noAnswerText = "I wasn't able to produce a complete answer. Could you rephrase the question or add more detail?"

// stripReasoning handles leaked reasoning. It returns the new text and the
// issue tag that fired, or "" when the text is a normal answer.
func stripReasoning(text string) (string, string) {
	if m := thinkBlock.FindStringSubmatch(text); m != nil {
		if rest := strings.TrimSpace(m[3]); rest != "" {
			return rest, IssueReasoningStripped
		}
		return rewriteReasoning(m[2]), IssueReasoningOnly
	}
	if m := openThink.FindStringSubmatch(text); m != nil {
		return rewriteReasoning(m[1]), IssueReasoningOnly
	}

	trimmed := strings.TrimSpace(text)
	for _, re := range reasoningLeaks {
		if re.MatchString(trimmed) && !answerMarkers.MatchString(trimmed) {
			return rewriteReasoning(trimmed), IssueReasoningOnly
		}
	}
	return text, ""
}

// rewriteReasoning keeps the last two sentences that are not about the
// reasoning process.
func rewriteReasoning(reasoning string) string {
	var kept []string
	for _, sentence := range splitSentences(reasoning) {
		if !metaSentence.MatchString(sentence) {
			kept = append(kept, sentence)
		}
	}
	if len(kept) == 0 {
		return noAnswerText
	}
	if len(kept) > 2 {
		kept = kept[len(kept)-2:]
	}
	out := strings.Join(kept, " ")
	if !strings.ContainsAny(out[len(out)-1:], ".!?") {
		out += "."
	}
	return out
}

func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(strings.TrimSpace(text), "$1\x00")
	var out []string
	for _, s := range strings.Split(marked, "\x00") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
