package builtin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/yyuchenn/bubblefish-sub001/internal/bunny"
	"github.com/yyuchenn/bubblefish-sub001/internal/event"
	"github.com/yyuchenn/bubblefish-sub001/internal/plugin"
	"github.com/yyuchenn/bubblefish-sub001/internal/task"
)

const (
	defaultLLMModel   = string(openai.ChatModelGPT4oMini)
	defaultLLMTimeout = 60 * time.Second

	cancelPollInterval = 100 * time.Millisecond
)

var ErrNoAPIKey = errors.New("builtin: llm translate requires an API key")

// LLMTranslate registers a translation service backed by an OpenAI-style
// chat completion endpoint.
type LLMTranslate struct {
	ctx    *plugin.Context
	client openai.Client
	model  string
}

// LLMOptions configures the LLM translation plugin.
type LLMOptions struct {
	// APIKey authenticates against the endpoint. Required.
	APIKey string
	// BaseURL overrides the endpoint, e.g. for local gateways.
	BaseURL string
	// Model defaults to gpt-4o-mini.
	Model string
}

func NewLLMTranslate(opts LLMOptions) (*LLMTranslate, error) {
	if opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	model := opts.Model
	if model == "" {
		model = defaultLLMModel
	}
	return &LLMTranslate{
		client: openai.NewClient(reqOpts...),
		model:  model,
	}, nil
}

func (p *LLMTranslate) Metadata() plugin.Metadata {
	return plugin.Metadata{
		ID:      "llm-translate",
		Name:    "LLM Translation",
		Version: "1.0.0",
	}
}

func (p *LLMTranslate) Init(ctx *plugin.Context) error {
	p.ctx = ctx
	ctx.Host.RegisterTranslation(bunny.TranslationServiceInfo{
		ServiceID:       "llm-translate",
		Name:            "LLM Translation",
		SourceLanguages: []string{"ja", "zh", "ko", "en"},
		TargetLanguages: []string{"en", "zh", "fr", "de"},
	}, bunny.TranslationFunc(p.translate))
	return nil
}

func (p *LLMTranslate) translate(tok *task.Token, req bunny.TranslationRequest) (string, error) {
	// Bridge token polling onto a context so an in-flight HTTP request
	// is abandoned soon after cancellation.
	ctx, cancel := context.WithTimeout(context.Background(), defaultLLMTimeout)
	defer cancel()
	stop := watchToken(ctx, tok, cancel)
	defer stop()

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(translationPrompt(req)),
			openai.UserMessage(req.Text),
		},
	})
	if err != nil {
		if tok.Cancelled() {
			return "", context.Canceled
		}
		return "", fmt.Errorf("builtin: llm translate: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("builtin: llm translate: empty completion")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func translationPrompt(req bunny.TranslationRequest) string {
	var b strings.Builder
	b.WriteString("You translate manga text. Reply with the translation only, no commentary.")
	if req.Source != "" {
		fmt.Fprintf(&b, " Source language: %s.", req.Source)
	}
	fmt.Fprintf(&b, " Target language: %s.", req.Target)
	return b.String()
}

// watchToken cancels ctx once the token trips. The returned stop function
// ends the polling goroutine.
func watchToken(ctx context.Context, tok *task.Token, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if tok.Cancelled() {
					cancel()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func (p *LLMTranslate) OnActivate() error                            { return nil }
func (p *LLMTranslate) OnDeactivate() error                          { return nil }
func (p *LLMTranslate) OnCoreEvent(event.Envelope) error             { return nil }
func (p *LLMTranslate) OnPluginMessage(string, map[string]any) error { return nil }
func (p *LLMTranslate) Destroy()                                     {}
