package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
)

func stopConfig() config.AgentConfig {
	return config.AgentConfig{
		RecursionLimit: 25,
		StopPhrases: []string{
			"test completed successfully",
			"task completed successfully",
			"verification failed",
			"unable to proceed",
			"stop",
		},
		SimilarityThreshold: 0.9,
		SimilarityWindow:    6,
		SimilarityCount:     3,
		RepetitionWindow:    8,
		RepetitionCount:     4,
	}
}

func TestMatchStopPhrase(t *testing.T) {
	phrases := stopConfig().StopPhrases

	testCases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "exact phrase",
			content: "test completed successfully",
			want:    "test completed successfully",
		},
		{
			name:    "phrase embedded in a sentence",
			content: "All steps passed. Test completed successfully: the dashboard is visible.",
			want:    "test completed successfully",
		},
		{
			name:    "case insensitive",
			content: "UNABLE TO PROCEED: the login form never rendered.",
			want:    "unable to proceed",
		},
		{
			name:    "no phrase",
			content: "I will now click the submit button.",
			want:    "",
		},
		{
			name:    "empty content",
			content: "",
			want:    "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, matchStopPhrase(phrases, tc.content))
		})
	}
}

func TestMatchStopPhraseSkipsEmptyPhrases(t *testing.T) {
	got := matchStopPhrase([]string{"", "done"}, "we are done here")
	assert.Equal(t, "done", got)
}

func TestLoopDetected(t *testing.T) {
	testCases := []struct {
		name      string
		texts     []string
		threshold float64
		window    int
		count     int
		want      bool
	}{
		{
			name:      "three identical messages",
			texts:     []string{"Clicking the login button now.", "Clicking the login button now.", "Clicking the login button now."},
			threshold: 0.9,
			window:    6,
			count:     3,
			want:      true,
		},
		{
			name:      "near duplicates above threshold",
			texts:     []string{"Clicking the login button now.", "Clicking the login button now!", "Clicking the login button now?"},
			threshold: 0.9,
			window:    6,
			count:     3,
			want:      true,
		},
		{
			name:      "two duplicates are below count",
			texts:     []string{"Clicking the login button now.", "Clicking the login button now.", "Filling the password field."},
			threshold: 0.9,
			window:    6,
			count:     3,
			want:      false,
		},
		{
			name:      "distinct messages",
			texts:     []string{"Navigating to the site.", "Filling the email field.", "Clicking the login button."},
			threshold: 0.9,
			window:    6,
			count:     3,
			want:      false,
		},
		{
			name:      "empty contents are ignored",
			texts:     []string{"", "", "", ""},
			threshold: 0.9,
			window:    6,
			count:     3,
			want:      false,
		},
		{
			name: "old duplicates fall outside the window",
			texts: []string{
				"Clicking the login button now.",
				"Clicking the login button now.",
				"Clicking the login button now.",
				"Navigating to the settings page.",
				"Filling the email field with the address.",
				"Opening the notifications panel.",
				"Verifying the welcome banner text.",
				"Waiting for the spinner to disappear.",
				"Taking a screenshot of the result.",
			},
			threshold: 0.9,
			window:    6,
			count:     3,
			want:      false,
		},
		{
			name: "repetition already escaped does not trip",
			texts: []string{
				"Clicking the login button now.",
				"Clicking the login button now.",
				"Clicking the login button now.",
				"Moving on to the password field.",
			},
			threshold: 0.9,
			window:    6,
			count:     3,
			want:      false,
		},
		{
			name:      "count of one never trips",
			texts:     []string{"same", "same", "same"},
			threshold: 0.9,
			window:    6,
			count:     1,
			want:      false,
		},
		{
			name:      "zero window never trips",
			texts:     []string{"same", "same", "same"},
			threshold: 0.9,
			window:    0,
			count:     3,
			want:      false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, loopDetected(tc.texts, tc.threshold, tc.window, tc.count))
		})
	}
}

func TestToolRepetition(t *testing.T) {
	testCases := []struct {
		name   string
		names  []string
		window int
		count  int
		want   bool
	}{
		{
			name:   "four in a row",
			names:  []string{"click_element", "click_element", "click_element", "click_element"},
			window: 8,
			count:  4,
			want:   true,
		},
		{
			name:   "three is below count",
			names:  []string{"click_element", "click_element", "click_element"},
			window: 8,
			count:  4,
			want:   false,
		},
		{
			name:   "interleaved calls still dominate",
			names:  []string{"click_element", "navigate", "click_element", "fill_field", "click_element", "verify_element", "click_element"},
			window: 8,
			count:  4,
			want:   true,
		},
		{
			name: "old repeats fall outside the window",
			names: []string{
				"click_element", "click_element", "click_element", "click_element",
				"navigate", "fill_field", "verify_element", "wait_for_element",
				"take_screenshot", "navigate", "fill_field", "verify_element",
			},
			window: 8,
			count:  4,
			want:   false,
		},
		{
			name:   "zero count never trips",
			names:  []string{"click_element", "click_element"},
			window: 8,
			count:  0,
			want:   false,
		},
		{
			name:   "empty history",
			names:  nil,
			window: 8,
			count:  4,
			want:   false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, toolRepetition(tc.names, tc.window, tc.count))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("abcd", "abcd"))
	assert.Equal(t, 1.0, similarity("", ""))
	assert.InDelta(t, 0.75, similarity("abcd", "abce"), 1e-9)
	assert.Equal(t, 0.0, similarity("abc", ""))
	assert.Greater(t, similarity("click the button", "click the button!"), 0.9)
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 3, levenshtein([]rune("kitten"), []rune("sitting")))
	assert.Equal(t, 3, levenshtein([]rune(""), []rune("abc")))
	assert.Equal(t, 2, levenshtein([]rune("flaw"), []rune("lawn")))
	assert.Equal(t, 0, levenshtein([]rune("same"), []rune("same")))
}

func TestShouldStop(t *testing.T) {
	cfg := stopConfig()

	t.Run("stop phrase wins over every other condition", func(t *testing.T) {
		reason, stop := shouldStop(cfg, loopState{
			iteration:      cfg.RecursionLimit,
			assistantTexts: []string{"same thing", "same thing", "same thing"},
			toolNames:      []string{"click_element", "click_element", "click_element", "click_element"},
			lastContent:    "Test completed successfully. Login verified.",
		})
		assert.True(t, stop)
		assert.Equal(t, StopPhrase, reason)
	})

	t.Run("recursion limit", func(t *testing.T) {
		reason, stop := shouldStop(cfg, loopState{
			iteration:   cfg.RecursionLimit,
			lastContent: "Still working on it.",
		})
		assert.True(t, stop)
		assert.Equal(t, StopRecursionLimit, reason)
	})

	t.Run("loop detection", func(t *testing.T) {
		reason, stop := shouldStop(cfg, loopState{
			iteration:      5,
			assistantTexts: []string{"I will click the button.", "I will click the button.", "I will click the button."},
			lastContent:    "I will click the button.",
		})
		assert.True(t, stop)
		assert.Equal(t, StopLoopDetected, reason)
	})

	t.Run("tool repetition", func(t *testing.T) {
		reason, stop := shouldStop(cfg, loopState{
			iteration:   5,
			toolNames:   []string{"click_element", "click_element", "click_element", "click_element"},
			lastContent: "Trying the click once more.",
		})
		assert.True(t, stop)
		assert.Equal(t, StopToolRepetition, reason)
	})

	t.Run("healthy progress continues", func(t *testing.T) {
		reason, stop := shouldStop(cfg, loopState{
			iteration:      5,
			assistantTexts: []string{"Navigating.", "Filling the form.", "Clicking login."},
			toolNames:      []string{"navigate", "fill_field", "click_element"},
			lastContent:    "Clicking login.",
		})
		assert.False(t, stop)
		assert.Equal(t, StopNone, reason)
	})
}
