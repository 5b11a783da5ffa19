package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDKURL = "https://cdn.example/sdk.js"

func TestRenderIntegrationCode(t *testing.T) {
	for _, platform := range Platforms {
		t.Run(platform, func(t *testing.T) {
			code, err := RenderIntegrationCode(testSDKURL, "pub-1", "pk_live_secret", platform, true)
			require.NoError(t, err)

			assert.Equal(t, "pub-1", code.PublisherID)
			assert.Equal(t, platform, code.Platform)
			assert.Contains(t, code.CodeSnippets.Header, testSDKURL)
			assert.Contains(t, code.CodeSnippets.Body, "publisherId: 'pub-1'")
			assert.Contains(t, code.CodeSnippets.Body, "apiKey: 'pk_live_secret'")
			assert.NotEmpty(t, code.InstallationSteps)
		})
	}
}

func TestRenderIntegrationCodeDefaultsToCustom(t *testing.T) {
	code, err := RenderIntegrationCode(testSDKURL, "pub-1", "key", "", false)
	require.NoError(t, err)

	assert.Equal(t, PlatformCustom, code.Platform)
	assert.Equal(t, `<script src="https://cdn.example/sdk.js" async></script>`, code.CodeSnippets.Header)
	assert.NotContains(t, code.CodeSnippets.Body, "<!--")
}

func TestRenderIntegrationCodeComments(t *testing.T) {
	with, err := RenderIntegrationCode(testSDKURL, "pub-1", "key", PlatformReact, true)
	require.NoError(t, err)

	without, err := RenderIntegrationCode(testSDKURL, "pub-1", "key", PlatformReact, false)
	require.NoError(t, err)

	assert.Contains(t, with.CodeSnippets.Body, "// The SDK attaches")
	assert.NotContains(t, without.CodeSnippets.Body, "// The SDK attaches")
}

func TestRenderIntegrationCodeUnknownPlatform(t *testing.T) {
	_, err := RenderIntegrationCode(testSDKURL, "pub-1", "key", "joomla", true)
	assert.Error(t, err)
	assert.False(t, ValidPlatform("joomla"))
}
