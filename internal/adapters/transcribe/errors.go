package transcribe

import "errors"

// Sentinel errors for transcription.
var (
	ErrDisabled      = errors.New("transcription is not configured")
	ErrTranscription = errors.New("transcription failed")
)
