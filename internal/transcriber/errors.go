package transcriber

import "errors"

var (
	ErrModelNotLoaded   = errors.New("transcriber: model not loaded")
	ErrAlreadyListening = errors.New("transcriber: already listening")
)

// FatalTranscriptionError marks an engine failure that later windows of the
// same session would hit again. Listeners report it as Result.Err so the
// session aborts; any other engine error only costs the window it came from.
type FatalTranscriptionError struct {
	Err error
}

func (e *FatalTranscriptionError) Error() string {
	if e == nil || e.Err == nil {
		return "fatal transcription error"
	}
	return e.Err.Error()
}

func (e *FatalTranscriptionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewFatalTranscriptionError(err error) error {
	if err == nil {
		return nil
	}
	return &FatalTranscriptionError{Err: err}
}

func IsFatalTranscriptionError(err error) bool {
	var fatal *FatalTranscriptionError
	return errors.As(err, &fatal)
}
