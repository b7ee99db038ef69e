package entities

// CapturedImage is one still frame from the device camera. It is owned by
// the intent that requested it and discarded once the inference request
// completes; nothing retains it afterwards.
type CapturedImage struct {
	Data     []byte
	MIMEType string
}

// Recording is a finalized microphone recording handed over by the device
// at the end of an audio-capture session.
type Recording struct {
	Data     []byte
	MIMEType string
	FileName string
}

// Empty reports whether the recording carries no audio payload. An empty
// recording aborts the upload silently; there is nothing to transcribe.
func (r Recording) Empty() bool {
	return len(r.Data) == 0
}
