package stt

import (
	"fmt"
	"strings"
)

// MaxUploadBytes is the largest audio payload accepted (25 MiB).
const MaxUploadBytes = 25 << 20

// formats maps accepted MIME types to the file extension sent to the provider.
var formats = map[string]string{
	"audio/wav":  "wav",
	"audio/mp3":  "mp3",
	"audio/mpeg": "mp3",
	"audio/webm": "webm",
	"audio/ogg":  "ogg",
}

// SupportedFormats lists the accepted MIME types.
func SupportedFormats() []string {
	return []string{"audio/wav", "audio/mp3", "audio/mpeg", "audio/webm", "audio/ogg"}
}

// baseMIME strips parameters such as "; codecs=opus".
func baseMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// IsSupported reports whether mime is an accepted audio type.
func IsSupported(mime string) bool {
	_, ok := formats[baseMIME(mime)]
	return ok
}

// FilenameFor returns a provider filename for mime, e.g. "audio.webm".
func FilenameFor(mime string) (string, error) {
	ext, ok := formats[baseMIME(mime)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, mime)
	}
	return "audio." + ext, nil
}
