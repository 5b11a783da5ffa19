package publisher

import (
	"fmt"
	"strings"
	"text/template"
)

// Integration platforms with dedicated snippets.
const (
	PlatformCustom    = "custom"
	PlatformWordPress = "wordpress"
	PlatformReact     = "react"
	PlatformShopify   = "shopify"
	PlatformWix       = "wix"
)

// Platforms lists the supported integration platforms.
var Platforms = []string{PlatformWordPress, PlatformCustom, PlatformReact, PlatformShopify, PlatformWix}

// IntegrationCode is the embeddable SDK snippet for a publisher's site.
type IntegrationCode struct {
	PublisherID       string       `json:"publisher_id"`
	Platform          string       `json:"platform"`
	CodeSnippets      CodeSnippets `json:"code_snippets"`
	InstallationSteps []string     `json:"installation_steps"`
}

// CodeSnippets are the header and body fragments of the integration.
type CodeSnippets struct {
	Header string `json:"header"`
	Body   string `json:"body"`
}

type snippetData struct {
	SDKURL      string
	PublisherID string
	APIKey      string
	Comments    bool
}

type platformTemplate struct {
	header *template.Template
	body   *template.Template
	steps  []string
}

const (
	scriptHeader = `{{if .Comments}}<!-- HotLabel SDK -->
{{end}}<script src="{{.SDKURL}}" async></script>`

	scriptBody = `{{if .Comments}}<!-- HotLabel widget container: place where tasks should appear -->
{{end}}<div id="hotlabel-container"></div>
<script>
HotLabel.init({
    containerId: 'hotlabel-container',
    publisherId: '{{.PublisherID}}',
    apiKey: '{{.APIKey}}'
});
</script>`
)

var platformTemplates = map[string]platformTemplate{
	PlatformCustom: {
		header: mustTemplate("custom-header", scriptHeader),
		body:   mustTemplate("custom-body", scriptBody),
		steps: []string{
			"Add the HotLabel script to your website's <head>",
			"Add the container div and initialization code where you want the widget to appear",
		},
	},
	PlatformWordPress: {
		header: mustTemplate("wordpress-header", `{{if .Comments}}// Add to your theme's functions.php
{{end}}function hotlabel_enqueue_sdk() {
    wp_enqueue_script('hotlabel-sdk', '{{.SDKURL}}', array(), null, true);
}
add_action('wp_enqueue_scripts', 'hotlabel_enqueue_sdk');`),
		body: mustTemplate("wordpress-body", `{{if .Comments}}<!-- Paste into a Custom HTML block -->
{{end}}<div id="hotlabel-container"></div>
<script>
document.addEventListener('DOMContentLoaded', function () {
    HotLabel.init({
        containerId: 'hotlabel-container',
        publisherId: '{{.PublisherID}}',
        apiKey: '{{.APIKey}}'
    });
});
</script>`),
		steps: []string{
			"Add the enqueue snippet to your theme's functions.php",
			"Insert a Custom HTML block containing the container code into your posts or templates",
			"Clear any page cache so the SDK is loaded",
		},
	},
	PlatformReact: {
		header: mustTemplate("react-header", `{{if .Comments}}// npm install @hotlabel/react, or load the SDK in public/index.html:
{{end}}<script src="{{.SDKURL}}" async></script>`),
		body: mustTemplate("react-body", `import { useEffect } from 'react';

export function HotLabelWidget() {
  useEffect(() => {
{{- if .Comments}}
    // The SDK attaches itself to window.HotLabel once loaded.
{{- end}}
    window.HotLabel.init({
      containerId: 'hotlabel-container',
      publisherId: '{{.PublisherID}}',
      apiKey: '{{.APIKey}}',
    });
  }, []);

  return <div id="hotlabel-container" />;
}`),
		steps: []string{
			"Load the HotLabel SDK in public/index.html",
			"Render the HotLabelWidget component where tasks should appear",
		},
	},
	PlatformShopify: {
		header: mustTemplate("shopify-header", `{{if .Comments}}{% comment %} Add to theme.liquid before </head> {% endcomment %}
{{end}}<script src="{{.SDKURL}}" async></script>`),
		body: mustTemplate("shopify-body", scriptBody),
		steps: []string{
			"Open Online Store > Themes > Edit code and add the header snippet to theme.liquid",
			"Add the container code to the section or template where tasks should appear",
		},
	},
	PlatformWix: {
		header: mustTemplate("wix-header", scriptHeader),
		body:   mustTemplate("wix-body", scriptBody),
		steps: []string{
			"Open Settings > Custom Code and add the header snippet to all pages in the Head",
			"Add an Embed HTML element containing the container code to your page",
		},
	},
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=error").Parse(text))
}

// ValidPlatform reports whether platform has integration snippets.
func ValidPlatform(platform string) bool {
	_, ok := platformTemplates[platform]

	return ok
}

// RenderIntegrationCode builds the integration snippets for a publisher.
// An empty platform selects the custom snippet.
func RenderIntegrationCode(sdkURL, publisherID, apiKey, platform string, includeComments bool) (*IntegrationCode, error) {
	if platform == "" {
		platform = PlatformCustom
	}

	tmpl, ok := platformTemplates[platform]
	if !ok {
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}

	data := snippetData{
		SDKURL:      sdkURL,
		PublisherID: publisherID,
		APIKey:      apiKey,
		Comments:    includeComments,
	}

	header, err := execute(tmpl.header, data)
	if err != nil {
		return nil, err
	}

	body, err := execute(tmpl.body, data)
	if err != nil {
		return nil, err
	}

	steps := make([]string, len(tmpl.steps))
	copy(steps, tmpl.steps)

	return &IntegrationCode{
		PublisherID:       publisherID,
		Platform:          platform,
		CodeSnippets:      CodeSnippets{Header: header, Body: body},
		InstallationSteps: steps,
	}, nil
}

func execute(tmpl *template.Template, data snippetData) (string, error) {
	var sb strings.Builder

	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", tmpl.Name(), err)
	}

	return sb.String(), nil
}
