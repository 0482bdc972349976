package browser

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
)

// hasOption checks for an option by inspecting its string representation, a
// pragmatic way to test flag construction without launching a browser.
func hasOption(opts []chromedp.ExecAllocatorOption, substring string) bool {
	for _, opt := range opts {
		if strings.Contains(fmt.Sprintf("%#v", opt), substring) {
			return true
		}
	}
	return false
}

func TestDefaultAllocatorOptions(t *testing.T) {
	t.Run("baseline flags", func(t *testing.T) {
		opts := DefaultAllocatorOptions(config.BrowserConfig{})
		assert.True(t, hasOption(opts, "enable-automation"))
		assert.True(t, hasOption(opts, "disable-dev-shm-usage"))
	})

	t.Run("cache disabled", func(t *testing.T) {
		opts := DefaultAllocatorOptions(config.BrowserConfig{DisableCache: true})
		assert.True(t, hasOption(opts, "disable-cache"))
		assert.True(t, hasOption(opts, "disk-cache-size"))
		assert.True(t, hasOption(opts, "media-cache-size"))
	})

	t.Run("tls errors ignored", func(t *testing.T) {
		opts := DefaultAllocatorOptions(config.BrowserConfig{IgnoreTLSErrors: true})
		assert.True(t, hasOption(opts, "ignore-certificate-errors"))
	})

	t.Run("tls errors honored by default", func(t *testing.T) {
		opts := DefaultAllocatorOptions(config.BrowserConfig{})
		assert.False(t, hasOption(opts, "ignore-certificate-errors"))
	})

	t.Run("user agent", func(t *testing.T) {
		opts := DefaultAllocatorOptions(config.BrowserConfig{UserAgent: "test-agent/1.0"})
		assert.True(t, hasOption(opts, "test-agent/1.0"))
	})

	t.Run("extra args", func(t *testing.T) {
		opts := DefaultAllocatorOptions(config.BrowserConfig{
			Args: []string{"--lang=en-US", "disable-extensions", ""},
		})
		assert.True(t, hasOption(opts, "lang"))
		assert.True(t, hasOption(opts, "en-US"))
		assert.True(t, hasOption(opts, "disable-extensions"))
	})
}

func TestNewManagerDefersLaunch(t *testing.T) {
	m := NewManager(config.BrowserConfig{Headless: true})
	require.NotNil(t, m)
	assert.Nil(t, m.allocCtx, "browser must not launch before the first session")
}

func TestShutdownWithoutLaunch(t *testing.T) {
	m := NewManager(config.BrowserConfig{Headless: true})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
}
