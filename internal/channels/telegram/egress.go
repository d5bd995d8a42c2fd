// Package telegram implements the Telegram long-poll transport: inbound
// getUpdates loop, allowlist/pairing gate, /start-code web-registration
// linking, and an egress pipeline that strips tool-call markup, extracts
// attachment markers, and chunks long replies under Telegram's message
// limit. Grounded on
// original_source/src/channels/telegram.rs.
package telegram

import (
	"path/filepath"
	"strings"
)

const maxMessageLength = 4096

// AttachmentKind is the Telegram send* method an attachment maps to.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentVoice    AttachmentKind = "voice"
)

func attachmentKindFromMarker(marker string) (AttachmentKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(marker)) {
	case "IMAGE", "PHOTO":
		return AttachmentImage, true
	case "DOCUMENT", "FILE":
		return AttachmentDocument, true
	case "VIDEO":
		return AttachmentVideo, true
	case "AUDIO":
		return AttachmentAudio, true
	case "VOICE":
		return AttachmentVoice, true
	default:
		return "", false
	}
}

// Attachment is an outbound file reference extracted from egress text.
type Attachment struct {
	Kind   AttachmentKind
	Target string
}

// stripToolCallTags removes <tool>...</tool>, <toolcall>...</toolcall>, and
// <tool-call>...</tool-call> spans, then collapses runs of 3+ newlines down
// to a paragraph break. Telegram's Markdown parser 400s on raw XML-ish
// markup, so this must run before any Markdown-mode send.
func stripToolCallTags(message string) string {
	result := message
	for _, tags := range [][2]string{{"<tool>", "</tool>"}, {"<toolcall>", "</toolcall>"}, {"<tool-call>", "</tool-call>"}} {
		open, close := tags[0], tags[1]
		for {
			start := strings.Index(result, open)
			if start < 0 {
				break
			}
			rest := result[start:]
			end := strings.Index(rest, close)
			if end < 0 {
				break
			}
			end = start + end + len(close)
			result = result[:start] + result[end:]
		}
	}
	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(result)
}

// parseAttachmentMarkers scans message for "[KIND:target]" spans, removing
// recognized ones from the returned text and collecting them as
// Attachments. Unrecognized bracket spans are left untouched in the text.
func parseAttachmentMarkers(message string) (string, []Attachment) {
	var cleaned strings.Builder
	var attachments []Attachment
	cursor := 0

	for cursor < len(message) {
		openRel := strings.IndexByte(message[cursor:], '[')
		if openRel < 0 {
			cleaned.WriteString(message[cursor:])
			break
		}
		open := cursor + openRel
		cleaned.WriteString(message[cursor:open])

		closeRel := strings.IndexByte(message[open:], ']')
		if closeRel < 0 {
			cleaned.WriteString(message[open:])
			break
		}
		closeIdx := open + closeRel
		marker := message[open+1 : closeIdx]

		kind, target, ok := splitMarker(marker)
		if ok {
			attachments = append(attachments, Attachment{Kind: kind, Target: target})
		} else {
			cleaned.WriteString(message[open : closeIdx+1])
		}
		cursor = closeIdx + 1
	}

	return strings.TrimSpace(cleaned.String()), attachments
}

func splitMarker(marker string) (AttachmentKind, string, bool) {
	kindStr, target, found := strings.Cut(marker, ":")
	if !found {
		return "", "", false
	}
	kind, ok := attachmentKindFromMarker(kindStr)
	if !ok {
		return "", "", false
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return "", "", false
	}
	return kind, target, true
}

func isHTTPURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

func inferAttachmentKindFromTarget(target string) (AttachmentKind, bool) {
	normalized := target
	if i := strings.IndexByte(normalized, '?'); i >= 0 {
		normalized = normalized[:i]
	}
	if i := strings.IndexByte(normalized, '#'); i >= 0 {
		normalized = normalized[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(normalized), "."))
	switch ext {
	case "png", "jpg", "jpeg", "gif", "webp", "bmp":
		return AttachmentImage, true
	case "mp4", "mov", "mkv", "avi", "webm":
		return AttachmentVideo, true
	case "mp3", "m4a", "wav", "flac":
		return AttachmentAudio, true
	case "ogg", "oga", "opus":
		return AttachmentVoice, true
	case "pdf", "txt", "md", "csv", "json", "zip", "tar", "gz", "doc", "docx", "xls", "xlsx", "ppt", "pptx":
		return AttachmentDocument, true
	default:
		return "", false
	}
}

// parsePathOnlyAttachment recognizes a reply that is entirely a single
// bare path or URL with a recognized extension — sent as an attachment
// with no accompanying text, rather than requiring a "[KIND:target]"
// marker.
func parsePathOnlyAttachment(message string, fileExists func(string) bool) (Attachment, bool) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" || strings.ContainsRune(trimmed, '\n') {
		return Attachment{}, false
	}
	candidate := strings.Trim(trimmed, "`\"'")
	if strings.ContainsFunc(candidate, func(r rune) bool { return r == ' ' || r == '\t' }) {
		return Attachment{}, false
	}
	candidate = strings.TrimPrefix(candidate, "file://")
	kind, ok := inferAttachmentKindFromTarget(candidate)
	if !ok {
		return Attachment{}, false
	}
	if !isHTTPURL(candidate) && !fileExists(candidate) {
		return Attachment{}, false
	}
	return Attachment{Kind: kind, Target: candidate}, true
}

// splitMessage breaks message into chunks no longer than maxMessageLength,
// preferring to break at a newline (if not too close to the start) then a
// space, falling back to a hard split at the limit.
func splitMessage(message string) []string {
	if len(message) <= maxMessageLength {
		return []string{message}
	}

	var chunks []string
	remaining := message
	for len(remaining) > 0 {
		if len(remaining) <= maxMessageLength {
			chunks = append(chunks, remaining)
			break
		}
		searchArea := remaining[:maxMessageLength]
		chunkEnd := maxMessageLength
		if nlPos := strings.LastIndexByte(searchArea, '\n'); nlPos >= 0 && nlPos >= maxMessageLength/2 {
			chunkEnd = nlPos + 1
		} else if spPos := strings.LastIndexByte(searchArea, ' '); spPos >= 0 {
			chunkEnd = spPos + 1
		}
		chunks = append(chunks, remaining[:chunkEnd])
		remaining = remaining[chunkEnd:]
	}
	return chunks
}

// continuationText wraps chunk with the "(continues...)"/"(continued)"
// markers when message was split into more than one piece.
func continuationText(chunk string, index, total int) string {
	if total <= 1 {
		return chunk
	}
	switch {
	case index == 0:
		return chunk + "\n\n(continues...)"
	case index == total-1:
		return "(continued)\n\n" + chunk
	default:
		return "(continued)\n\n" + chunk + "\n\n(continues...)"
	}
}
