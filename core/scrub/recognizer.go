package scrub

import (
	"errors"
	"sync"
)

// Recognizer finds and redacts one family of identifying information.
// Implementations must be safe for concurrent use and must never retain or
// log the matched substrings.
type Recognizer interface {
	// Name identifies the recognizer in audit details.
	Name() string

	// Redact returns the redacted text and match counts per entity key.
	Redact(text string) (string, map[string]int)
}

// ErrAdvancedUnavailable reports that no model-backed recognizer is bundled
// or that its model failed to load.
var ErrAdvancedUnavailable = errors.New("advanced recognizer unavailable")

// Advanced recognizer loading. A build that bundles a model-backed (NER)
// recognizer registers its factory via RegisterAdvancedFactory in an init
// function; plain builds leave it nil. The model loads at most once
// process-wide and a failed load pins the process to the regex table.
var (
	advancedOnce sync.Once
	advancedRec  Recognizer
	advancedErr  error

	advancedMu      sync.Mutex
	advancedFactory func(modelPath string) (Recognizer, error)
)

// RegisterAdvancedFactory installs the loader for the model-backed
// recognizer. It must be called before the first NewAdvanced or
// AdvancedAvailable call to take effect.
func RegisterAdvancedFactory(factory func(modelPath string) (Recognizer, error)) {
	advancedMu.Lock()
	defer advancedMu.Unlock()
	advancedFactory = factory
}

// loadAdvanced resolves the model-backed recognizer exactly once.
func loadAdvanced(modelPath string) (Recognizer, error) {
	advancedOnce.Do(func() {
		advancedMu.Lock()
		factory := advancedFactory
		advancedMu.Unlock()

		if factory == nil {
			advancedErr = ErrAdvancedUnavailable
			return
		}
		advancedRec, advancedErr = factory(modelPath)
		if advancedErr != nil {
			advancedRec = nil
		}
	})
	return advancedRec, advancedErr
}

// AdvancedAvailable reports whether the model-backed recognizer loaded.
// The first call triggers the load.
func AdvancedAvailable(modelPath string) bool {
	_, err := loadAdvanced(modelPath)
	return err == nil
}

// NewAdvanced returns a Scrubber that layers the model-backed recognizer
// over the regex table. When the model cannot load, the scrubber degrades
// deterministically to the regex table alone; the returned detail string
// records the degradation so gating can audit it, and the caller decides
// whether to warn. Processing never stops on a missing model.
func NewAdvanced(modelPath string) (*Scrubber, error) {
	rec, err := loadAdvanced(modelPath)
	if err != nil {
		s := New()
		s.detail = "recognizer=regex (advanced unavailable)"
		return s, err
	}
	return NewWithRecognizers(rec, NewRegexRecognizer()), nil
}
