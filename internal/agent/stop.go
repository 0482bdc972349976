package agent

import (
	"strings"

	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
)

// StopReason explains why the conversation loop ended.
type StopReason string

const (
	StopNone           StopReason = ""
	StopPhrase         StopReason = "stop_phrase"
	StopConclusion     StopReason = "conclusion"
	StopRecursionLimit StopReason = "recursion_limit"
	StopLoopDetected   StopReason = "loop_detected"
	StopToolRepetition StopReason = "tool_repetition"
	StopTimeout        StopReason = "timeout"
)

// loopState is the bounded view of the conversation that the stop decision
// reads. Slices are oldest first.
type loopState struct {
	iteration      int
	assistantTexts []string
	toolNames      []string
	lastContent    string
}

// shouldStop decides whether the loop ends after the latest model turn. It is
// a pure function over the loop state so every branch is testable without a
// model in the loop.
func shouldStop(cfg config.AgentConfig, state loopState) (StopReason, bool) {
	if phrase := matchStopPhrase(cfg.StopPhrases, state.lastContent); phrase != "" {
		return StopPhrase, true
	}
	if state.iteration >= cfg.RecursionLimit {
		return StopRecursionLimit, true
	}
	if loopDetected(state.assistantTexts, cfg.SimilarityThreshold, cfg.SimilarityWindow, cfg.SimilarityCount) {
		return StopLoopDetected, true
	}
	if toolRepetition(state.toolNames, cfg.RepetitionWindow, cfg.RepetitionCount) {
		return StopToolRepetition, true
	}
	return StopNone, false
}

// matchStopPhrase reports the first configured phrase contained in content,
// case-insensitively.
func matchStopPhrase(phrases []string, content string) string {
	lower := strings.ToLower(content)
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}

// loopDetected reports whether enough of the recent assistant messages are
// near-duplicates of the latest one. A task that repeated itself in the past
// but has since moved on does not trip. Empty contents (tool-call-only turns)
// are ignored so they cannot count as duplicates.
func loopDetected(texts []string, threshold float64, window, count int) bool {
	if count <= 1 || window <= 0 || len(texts) == 0 {
		return false
	}
	recent := texts
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	latest := recent[len(recent)-1]
	if latest == "" {
		return false
	}
	similar := 0
	for _, other := range recent {
		if other == "" {
			continue
		}
		if similarity(latest, other) >= threshold {
			similar++
		}
	}
	// The latest message counts itself as one duplicate.
	return similar >= count
}

// toolRepetition reports whether a single tool name dominates the recent
// call window.
func toolRepetition(names []string, window, count int) bool {
	if count <= 0 || window <= 0 {
		return false
	}
	recent := names
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	seen := make(map[string]int, len(recent))
	for _, n := range recent {
		seen[n]++
		if seen[n] >= count {
			return true
		}
	}
	return false
}

// similarity is 1 minus the normalized Levenshtein distance over runes. Equal
// strings score 1, fully disjoint strings approach 0.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein is the classic two-row edit distance.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
