package tools

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
)

// BrowserTool implements the browser-drive capability: drives a headless
// Chrome session through a short action sequence, capturing a screenshot
// after each step and writing the sequence out as a .gif trace artifact.
type BrowserTool struct {
	instancePath   string
	headless       bool
	proxyServer    string
	proxyUsername  string
	proxyPassword  string
	traceDir       string
	sem            chan struct{}
}

// BrowserOptions configures the browser-drive tool; field names mirror the
// CHROME_* environment keys it is wired from.
type BrowserOptions struct {
	InstancePath  string
	Headless      bool
	ProxyServer   string
	ProxyUsername string
	ProxyPassword string
	MaxConcurrent int
	TraceDir      string
}

// NewBrowserTool builds the browser-drive tool. The process-wide bounded
// concurrency pool is sized by opts.MaxConcurrent.
func NewBrowserTool(opts BrowserOptions) *BrowserTool {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &BrowserTool{
		instancePath:  opts.InstancePath,
		headless:      opts.Headless,
		proxyServer:   opts.ProxyServer,
		proxyUsername: opts.ProxyUsername,
		proxyPassword: opts.ProxyPassword,
		traceDir:      opts.TraceDir,
		sem:           make(chan struct{}, maxConcurrent),
	}
}

func (t *BrowserTool) Info() ToolInfo {
	return ToolInfo{
		Name:         "browser-drive",
		Description:  "Drives a headless browser to a URL and optionally clicks or types, returning observed screenshots.",
		InputSchema:  `{"type":"object","properties":{"url":{"type":"string"},"actions":{"type":"array"}},"required":["url"]}`,
		OutputSchema: `{"type":"object","properties":{"trace_file":{"type":"string"}}}`,
		Idempotent:   false,
	}
}

// BrowserAction is one step of a browser-drive invocation: navigate, click,
// type, or wait.
type BrowserAction struct {
	Kind     string `json:"kind"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	WaitMs   int    `json:"wait_ms,omitempty"`
}

func (t *BrowserTool) Invoke(ctx context.Context, args map[string]any, onProgress ProgressFunc) (Result, error) {
	url, _ := args["url"].(string)
	if url == "" {
		return Result{}, NewError("browser-drive", ErrorKindValidation, fmt.Errorf("url is required"))
	}

	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}, NewError("browser-drive", ErrorKindTimeout, ctx.Err())
	}
	defer func() { <-t.sem }()

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Headless)
	if !t.headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if t.instancePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(t.instancePath))
	}
	if t.proxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(t.proxyServer))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	if onProgress != nil {
		onProgress(ProgressEvent{Message: fmt.Sprintf("navigating to %s", url)})
	}

	var frames []image.Image

	capture := func(ctx context.Context) error {
		var buf []byte
		if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
			return err
		}
		img, err := decodePNG(buf)
		if err != nil {
			return err
		}
		frames = append(frames, img)
		return nil
	}

	if err := chromedp.Run(taskCtx, chromedp.Navigate(url)); err != nil {
		return Result{}, browserErr(err)
	}
	if err := capture(taskCtx); err != nil {
		return Result{}, browserErr(err)
	}

	for _, raw := range decodeActions(args["actions"]) {
		if err := t.runAction(taskCtx, raw); err != nil {
			return Result{}, browserErr(err)
		}
		if err := capture(taskCtx); err != nil {
			return Result{}, browserErr(err)
		}
	}

	filename, err := t.writeTrace(frames)
	if err != nil {
		return Result{}, NewError("browser-drive", ErrorKindPermanent, err)
	}

	return Result{Content: fmt.Sprintf(`{"trace_file":%q}`, filename)}, nil
}

func (t *BrowserTool) runAction(ctx context.Context, a BrowserAction) error {
	switch a.Kind {
	case "click":
		return chromedp.Run(ctx, chromedp.Click(a.Selector, chromedp.ByQuery))
	case "type":
		return chromedp.Run(ctx, chromedp.SendKeys(a.Selector, a.Text, chromedp.ByQuery))
	case "wait":
		wait := time.Duration(a.WaitMs) * time.Millisecond
		if wait <= 0 {
			wait = 500 * time.Millisecond
		}
		return chromedp.Run(ctx, chromedp.Sleep(wait))
	default:
		return fmt.Errorf("unknown browser action: %s", a.Kind)
	}
}

func (t *BrowserTool) writeTrace(frames []image.Image) (string, error) {
	if len(frames) == 0 {
		return "", fmt.Errorf("no frames captured")
	}

	g := &gif.GIF{}
	for _, f := range frames {
		paletted := toPaletted(f)
		g.Image = append(g.Image, paletted)
		g.Delay = append(g.Delay, 100)
	}

	filename := fmt.Sprintf("%s.gif", uuid.NewString())
	dir := t.traceDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, filename), buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return filename, nil
}

func browserErr(err error) error {
	return NewError("browser-drive", ErrorKindNetwork, err)
}

func decodeActions(raw any) []BrowserAction {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]BrowserAction, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		a := BrowserAction{}
		if v, ok := m["kind"].(string); ok {
			a.Kind = v
		}
		if v, ok := m["selector"].(string); ok {
			a.Selector = v
		}
		if v, ok := m["text"].(string); ok {
			a.Text = v
		}
		if v, ok := m["wait_ms"].(float64); ok {
			a.WaitMs = int(v)
		}
		out = append(out, a)
	}
	return out
}
