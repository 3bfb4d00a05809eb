package artifacts

import (
	"strings"
	"time"
)

// Key identifies a captured artifact slot pending submission.
type Key string

const (
	// KeyFront is the front document image.
	KeyFront Key = "front"
	// KeyBack is the back document image. Optional for single-sided documents.
	KeyBack Key = "back"
	// KeyFaceClip is the recorded face video clip.
	KeyFaceClip Key = "faceVideoBlob"
)

var allKeys = []Key{KeyFront, KeyBack, KeyFaceClip}

// AllKeys returns the ordered list of known artifact keys.
func AllKeys() []Key {
	cp := make([]Key, len(allKeys))
	copy(cp, allKeys)
	return cp
}

// ParseKey converts a string into a known Key.
func ParseKey(value string) (Key, bool) {
	normalized := strings.TrimSpace(value)
	for _, key := range allKeys {
		if string(key) == normalized {
			return key, true
		}
	}
	return "", false
}

// Kind describes the payload content of an artifact slot.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// KindForKey returns the expected content kind for an artifact slot.
func KindForKey(key Key) Kind {
	if key == KeyFaceClip {
		return KindVideo
	}
	return KindImage
}

// Artifact is a named binary item persisted in the local store.
type Artifact struct {
	Key         Key
	ContentType string
	Payload     []byte
	Size        int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Summary describes a stored artifact without its payload.
type Summary struct {
	Key         Key
	ContentType string
	Size        int64
	UpdatedAt   time.Time
}
