package builtin

import (
	"fmt"
	"time"

	"github.com/yyuchenn/bubblefish-sub001/internal/bunny"
	"github.com/yyuchenn/bubblefish-sub001/internal/event"
	"github.com/yyuchenn/bubblefish-sub001/internal/plugin"
	"github.com/yyuchenn/bubblefish-sub001/internal/task"
)

// DummyOCR registers a fake recognition service that reports image
// dimensions instead of running a model. It exists to exercise the bunny
// pipeline end to end, including cooperative cancellation.
type DummyOCR struct {
	ctx *plugin.Context

	// Delay simulates model latency. The provider polls its token while
	// waiting, so cancellation lands promptly.
	Delay time.Duration

	// Poll is the token check interval while waiting. Zero means
	// task.DefaultPollInterval.
	Poll time.Duration
}

func NewDummyOCR() *DummyOCR {
	return &DummyOCR{Delay: 200 * time.Millisecond}
}

func (p *DummyOCR) Metadata() plugin.Metadata {
	return plugin.Metadata{
		ID:      "dummy-ocr",
		Name:    "Dummy OCR",
		Version: "1.0.0",
	}
}

func (p *DummyOCR) Init(ctx *plugin.Context) error {
	p.ctx = ctx
	ctx.Host.RegisterOCR(bunny.OCRServiceInfo{
		ServiceID: "dummy-ocr",
		Name:      "Dummy OCR",
		Languages: []string{"ja", "en"},
	}, bunny.OCRFunc(p.recognize))
	return nil
}

func (p *DummyOCR) recognize(tok *task.Token, req bunny.OCRRequest) (string, error) {
	poll := p.Poll
	if poll <= 0 {
		poll = task.DefaultPollInterval
	}
	if err := task.WaitOrCancel(tok, p.Delay, poll); err != nil {
		return "", err
	}
	return fmt.Sprintf("[dummy] %s %dx%d (%d bytes)",
		req.Image.Name, req.Image.Width, req.Image.Height, len(req.Data)), nil
}

func (p *DummyOCR) OnActivate() error                            { return nil }
func (p *DummyOCR) OnDeactivate() error                          { return nil }
func (p *DummyOCR) OnCoreEvent(event.Envelope) error             { return nil }
func (p *DummyOCR) OnPluginMessage(string, map[string]any) error { return nil }
func (p *DummyOCR) Destroy()                                     {}
