//go:build go1.18
// +build go1.18

package resolver

import (
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
)

func Fuzz_buildStrategies(f *testing.F) {
	f.Add([]byte("Submit Order button"))
	f.Add([]byte(`Don't say "hi"`))
	f.Add([]byte{0xff, 0xfe, 0x00})

	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)

		description, err := consumer.GetString()
		if err != nil {
			return
		}
		elementType, err := consumer.GetString()
		if err != nil {
			return
		}

		strategies := buildStrategies(description, elementType)

		lastPriority := 0
		for _, s := range strategies {
			if s.Priority <= lastPriority {
				t.Fatalf("priority order violated: %q (%d) after %d", s.Name, s.Priority, lastPriority)
			}
			lastPriority = s.Priority
			if len(s.Selectors) == 0 {
				t.Fatalf("strategy %q survived filtering with no selectors", s.Name)
			}
			for _, sel := range s.Selectors {
				if strings.TrimSpace(sel) == "" {
					t.Fatalf("strategy %q produced a blank selector", s.Name)
				}
			}
		}
	})
}

func Fuzz_scoreConfidence(f *testing.F) {
	f.Add(1, "[aria-label='save']", "save the order")
	f.Add(7, "button", "")

	f.Fuzz(func(t *testing.T, priority int, selector, description string) {
		got := scoreConfidence(priority, selector, tokenize(description))
		if got < 0 || got > 100 {
			t.Fatalf("confidence %d out of bounds for priority=%d selector=%q", got, priority, selector)
		}
	})
}

func Fuzz_xpathLiteral(f *testing.F) {
	f.Add("plain")
	f.Add("it's here")
	f.Add(`a "quoted" value`)
	f.Add(`both ' and "`)

	f.Fuzz(func(t *testing.T, s string) {
		lit := xpathLiteral(s)
		if lit == "" {
			t.Fatal("literal is empty")
		}
		if strings.Contains(s, "'") && strings.Contains(s, `"`) {
			if !strings.HasPrefix(lit, "concat(") {
				t.Fatalf("mixed quotes must use concat, got %q", lit)
			}
		}
	})
}
