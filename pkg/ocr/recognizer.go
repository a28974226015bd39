package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Recognizer turns an encoded image into raw text. Implementations may block
// for a long time and should return early once ctx is done.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte, lang string) (string, error)
}

// RecognizerFunc adapts a plain function to Recognizer.
type RecognizerFunc func(ctx context.Context, img []byte, lang string) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, img []byte, lang string) (string, error) {
	return f(ctx, img, lang)
}

// TesseractRecognizer runs Tesseract through gosseract. A fresh client is
// created for every call because gosseract clients are not safe for
// concurrent use.
type TesseractRecognizer struct {
	// PageSegMode is passed to Tesseract when non-zero.
	PageSegMode gosseract.PageSegMode
	// Variables are extra Tesseract variables, e.g. "preserve_interword_spaces".
	Variables map[string]string
}

// NewTesseractRecognizer returns a recognizer with Tesseract's defaults.
func NewTesseractRecognizer() *TesseractRecognizer {
	return &TesseractRecognizer{}
}

type recognizeResult struct {
	text string
	err  error
}

// Recognize runs OCR on img. Tesseract itself cannot be interrupted, so when
// ctx ends first the call returns immediately and the engine finishes in the
// background.
func (t *TesseractRecognizer) Recognize(ctx context.Context, img []byte, lang string) (string, error) {
	if len(img) == 0 {
		return "", &OracleError{Engine: "tesseract", Err: errors.New("empty image buffer")}
	}
	done := make(chan recognizeResult, 1)
	go func() {
		text, err := t.run(img, lang)
		done <- recognizeResult{text: text, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", &OracleError{Engine: "tesseract", Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return "", &OracleError{Engine: "tesseract", Err: res.err}
		}
		return res.text, nil
	}
}

func (t *TesseractRecognizer) run(img []byte, lang string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("set language %q: %w", lang, err)
	}
	if t.PageSegMode != 0 {
		if err := client.SetPageSegMode(t.PageSegMode); err != nil {
			return "", fmt.Errorf("set page seg mode: %w", err)
		}
	}
	for k, v := range t.Variables {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return "", fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	return client.Text()
}
