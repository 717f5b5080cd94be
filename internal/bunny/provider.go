package bunny

import (
	"github.com/yyuchenn/bubblefish-sub001/internal/model"
	"github.com/yyuchenn/bubblefish-sub001/internal/task"
)

// OCRRequest carries one recognition job: the image descriptor plus its
// encoded bytes.
type OCRRequest struct {
	Image model.Image
	Data  []byte
}

// TranslationRequest carries one translation job. Source may be empty for
// providers that auto-detect.
type TranslationRequest struct {
	Text   string
	Source string
	Target string
}

// OCRProvider is implemented by plugins that contribute text recognition.
// Long-running implementations should poll the token between work units and
// return context.Canceled once it trips; the host never interrupts them
// forcibly.
type OCRProvider interface {
	Recognize(tok *task.Token, req OCRRequest) (string, error)
}

// TranslationProvider is implemented by plugins that contribute translation,
// with the same cancellation contract as OCRProvider.
type TranslationProvider interface {
	Translate(tok *task.Token, req TranslationRequest) (string, error)
}

// OCRFunc is a function adapter for OCRProvider.
type OCRFunc func(tok *task.Token, req OCRRequest) (string, error)

// Recognize implements the OCRProvider interface.
func (f OCRFunc) Recognize(tok *task.Token, req OCRRequest) (string, error) {
	return f(tok, req)
}

// TranslationFunc is a function adapter for TranslationProvider.
type TranslationFunc func(tok *task.Token, req TranslationRequest) (string, error)

// Translate implements the TranslationProvider interface.
func (f TranslationFunc) Translate(tok *task.Token, req TranslationRequest) (string, error) {
	return f(tok, req)
}
