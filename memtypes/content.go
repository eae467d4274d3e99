// Package memtypes implements the hierarchical memory entity and scope
// model: the typed memory record, its attribute set, and the four-level
// scope hierarchy that governs access.
package memtypes

import (
	"encoding/json"
	"fmt"
)

// ContentKind discriminates the tagged union stored in a Memory's Content.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentImage      ContentKind = "image"
	ContentAudio      ContentKind = "audio"
	ContentVideo      ContentKind = "video"
	ContentStructured ContentKind = "structured"
	ContentMixed      ContentKind = "mixed"
)

// Content is a tagged union over the memory payload types. Exactly the
// fields relevant to Kind are populated; the rest are zero values.
type Content struct {
	Kind       ContentKind     `json:"kind"`
	Text       string          `json:"text,omitempty"`
	URL        string          `json:"url,omitempty"`
	Caption    string          `json:"caption,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Summary    string          `json:"summary,omitempty"`
	Structured json.RawMessage `json:"structured,omitempty"`
	Mixed      []Content       `json:"mixed,omitempty"`
}

// NewTextContent builds a Text content value.
func NewTextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// NewImageContent builds an Image content value.
func NewImageContent(url, caption string) Content {
	return Content{Kind: ContentImage, URL: url, Caption: caption}
}

// NewAudioContent builds an Audio content value.
func NewAudioContent(url, transcript string) Content {
	return Content{Kind: ContentAudio, URL: url, Transcript: transcript}
}

// NewVideoContent builds a Video content value.
func NewVideoContent(url, summary string) Content {
	return Content{Kind: ContentVideo, URL: url, Summary: summary}
}

// NewStructuredContent builds a Structured content value from arbitrary
// JSON-serialisable data.
func NewStructuredContent(v any) (Content, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Content{}, fmt.Errorf("marshal structured content: %w", err)
	}
	return Content{Kind: ContentStructured, Structured: raw}, nil
}

// NewMixedContent builds a Mixed content value from its parts.
func NewMixedContent(parts ...Content) Content {
	return Content{Kind: ContentMixed, Mixed: parts}
}

// Equal reports deep equality between two Content values, following the
// same tag-then-fields comparison encode/decode round-trips rely on.
func (c Content) Equal(other Content) bool {
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case ContentText:
		return c.Text == other.Text
	case ContentImage:
		return c.URL == other.URL && c.Caption == other.Caption
	case ContentAudio:
		return c.URL == other.URL && c.Transcript == other.Transcript
	case ContentVideo:
		return c.URL == other.URL && c.Summary == other.Summary
	case ContentStructured:
		return string(c.Structured) == string(other.Structured)
	case ContentMixed:
		if len(c.Mixed) != len(other.Mixed) {
			return false
		}
		for i := range c.Mixed {
			if !c.Mixed[i].Equal(other.Mixed[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// PlainText extracts the best-effort textual representation of the
// content, used by the importance scorer and full-text search probe.
func (c Content) PlainText() string {
	switch c.Kind {
	case ContentText:
		return c.Text
	case ContentImage:
		return c.Caption
	case ContentAudio:
		return c.Transcript
	case ContentVideo:
		return c.Summary
	case ContentStructured:
		return string(c.Structured)
	case ContentMixed:
		out := ""
		for i, part := range c.Mixed {
			if i > 0 {
				out += " "
			}
			out += part.PlainText()
		}
		return out
	default:
		return ""
	}
}

// Encode serialises Content to JSON bytes.
func Encode(c Content) ([]byte, error) {
	return json.Marshal(c)
}

// Decode deserialises Content from JSON bytes.
func Decode(data []byte) (Content, error) {
	var c Content
	if err := json.Unmarshal(data, &c); err != nil {
		return Content{}, fmt.Errorf("decode content: %w", err)
	}
	return c, nil
}
