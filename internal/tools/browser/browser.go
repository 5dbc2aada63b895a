// Package browser exposes the browser controller as an agent.Tool. It holds
// no browser-specific logic of its own; every action is a thin translation
// from the tool's JSON parameters to a single internal/browser.Controller
// call.
package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dyzdyz010/agentrt/internal/agent"
	browsercontroller "github.com/dyzdyz010/agentrt/internal/browser"
	"github.com/google/uuid"
)

// BrowserTool implements the agent.Tool interface over a shared Controller.
// Every tool call competes for the same underlying browser process; the
// controller itself serializes them.
type BrowserTool struct {
	controller *browsercontroller.Controller
}

// NewBrowserTool creates a browser automation tool backed by controller.
func NewBrowserTool(controller *browsercontroller.Controller) *BrowserTool {
	return &BrowserTool{controller: controller}
}

func (b *BrowserTool) Name() string {
	return "browser"
}

func (b *BrowserTool) Description() string {
	return "Automate web browser interactions including navigation, clicking, form filling, screenshots, content extraction, and JavaScript execution. Backed by a single shared headless browser process."
}

func (b *BrowserTool) Schema() json.RawMessage {
	schema := `{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["navigate", "click", "type", "screenshot", "extract_text", "extract_html", "wait_for_element", "wait_for_navigation", "execute_js"],
				"description": "The browser action to perform"
			},
			"url": {
				"type": "string",
				"description": "URL to navigate to (required for navigate action)"
			},
			"selector": {
				"type": "string",
				"description": "CSS selector for the target element (required for click, type, extract actions)"
			},
			"text": {
				"type": "string",
				"description": "Text to type into an input field (required for type action)"
			},
			"script": {
				"type": "string",
				"description": "JavaScript code to execute (required for execute_js action)"
			},
			"timeout": {
				"type": "integer",
				"description": "Timeout in milliseconds for wait operations (default: 30000)"
			},
			"full_page": {
				"type": "boolean",
				"description": "Whether to capture full page screenshot (default: false)"
			}
		},
		"required": ["action"]
	}`
	return json.RawMessage(schema)
}

// Execute routes to the controller operation matching params.Action. A
// stopped controller surfaces browsercontroller.ErrNotRunning as a
// structured tool error rather than a Go error, matching the "operations
// issued while stopped return {:error, :not_running}" contract.
func (b *BrowserTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var base struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(params, &base); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	switch base.Action {
	case "navigate":
		return b.navigate(ctx, params)
	case "click":
		return b.click(ctx, params)
	case "type":
		return b.typeText(ctx, params)
	case "screenshot":
		return b.screenshot(ctx, params)
	case "extract_text":
		return b.extractText(ctx, params)
	case "extract_html":
		return b.extractHTML(ctx, params)
	case "wait_for_element":
		return b.waitForElement(ctx, params)
	case "wait_for_navigation":
		return b.waitForNavigation(ctx)
	case "execute_js":
		return b.executeJS(ctx, params)
	default:
		return errResult(fmt.Sprintf("unknown action: %s", base.Action)), nil
	}
}

func (b *BrowserTool) navigate(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid navigate parameters: %v", err)), nil
	}
	if p.URL == "" {
		return errResult("url parameter is required for navigate action"), nil
	}
	if err := b.controller.Navigate(ctx, p.URL); err != nil {
		return toolErr("navigation", err)
	}
	return okResult(fmt.Sprintf("Successfully navigated to %s", p.URL)), nil
}

func (b *BrowserTool) click(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Selector string `json:"selector"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid click parameters: %v", err)), nil
	}
	if p.Selector == "" {
		return errResult("selector parameter is required for click action"), nil
	}
	if err := b.controller.Click(ctx, p.Selector); err != nil {
		return toolErr("click", err)
	}
	return okResult(fmt.Sprintf("Successfully clicked element: %s", p.Selector)), nil
}

func (b *BrowserTool) typeText(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Selector string `json:"selector"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid type parameters: %v", err)), nil
	}
	if p.Selector == "" {
		return errResult("selector parameter is required for type action"), nil
	}
	if err := b.controller.Fill(ctx, p.Selector, p.Text); err != nil {
		return toolErr("type", err)
	}
	return okResult(fmt.Sprintf("Successfully typed text into element: %s", p.Selector)), nil
}

func (b *BrowserTool) screenshot(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		FullPage bool `json:"full_page"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid screenshot parameters: %v", err)), nil
	}
	png, err := b.controller.Screenshot(ctx, p.FullPage)
	if err != nil {
		return toolErr("screenshot", err)
	}
	encoded := base64.StdEncoding.EncodeToString(png)
	artifact := agent.Artifact{
		ID:       uuid.NewString(),
		Type:     "screenshot",
		MimeType: "image/png",
		Filename: fmt.Sprintf("browser_screenshot_%s.png", time.Now().Format("20060102_150405")),
		Data:     png,
	}
	return &agent.ToolResult{
		Content:   fmt.Sprintf("Screenshot captured (%d bytes, base64 preview %s...)", len(png), encoded[:min(len(encoded), 40)]),
		Artifacts: []agent.Artifact{artifact},
	}, nil
}

func (b *BrowserTool) extractText(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Selector string `json:"selector"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid extract_text parameters: %v", err)), nil
	}
	text, err := b.controller.ExtractText(ctx, p.Selector)
	if err != nil {
		return toolErr("text extraction", err)
	}
	return okResult(text), nil
}

func (b *BrowserTool) extractHTML(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Selector string `json:"selector"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid extract_html parameters: %v", err)), nil
	}
	html, err := b.controller.ExtractHTML(ctx, p.Selector)
	if err != nil {
		return toolErr("HTML extraction", err)
	}
	return okResult(html), nil
}

func (b *BrowserTool) waitForElement(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Selector string `json:"selector"`
		Timeout  int    `json:"timeout"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid wait_for_element parameters: %v", err)), nil
	}
	if p.Selector == "" {
		return errResult("selector parameter is required for wait_for_element action"), nil
	}
	if p.Timeout <= 0 {
		p.Timeout = 30000
	}
	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(p.Timeout)*time.Millisecond)
	defer cancel()
	if err := b.controller.Wait(waitCtx, p.Selector, 0); err != nil {
		return toolErr("wait for element", err)
	}
	return okResult(fmt.Sprintf("Element appeared: %s", p.Selector)), nil
}

func (b *BrowserTool) waitForNavigation(ctx context.Context) (*agent.ToolResult, error) {
	if err := b.controller.WaitForNavigation(ctx); err != nil {
		return toolErr("wait for navigation", err)
	}
	return okResult("Navigation completed"), nil
}

func (b *BrowserTool) executeJS(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Script string `json:"script"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return errResult(fmt.Sprintf("invalid execute_js parameters: %v", err)), nil
	}
	if p.Script == "" {
		return errResult("script parameter is required for execute_js action"), nil
	}
	result, err := b.controller.Evaluate(ctx, p.Script)
	if err != nil {
		return toolErr("JavaScript execution", err)
	}
	return okResult(fmt.Sprintf("%v", result)), nil
}

func okResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content, IsError: false}
}

func errResult(content string) *agent.ToolResult {
	return &agent.ToolResult{Content: content, IsError: true}
}

// toolErr maps a controller error to a tool result. browsercontroller.ErrNotRunning
// is reported through Content rather than as a returned error so the loop
// treats it as a normal (non-retryable-by-default) tool failure, matching
// the "operations issued while stopped return {:error, :not_running}"
// contract without killing the run.
func toolErr(verb string, err error) (*agent.ToolResult, error) {
	return errResult(fmt.Sprintf("%s failed: %v", verb, err)), nil
}
