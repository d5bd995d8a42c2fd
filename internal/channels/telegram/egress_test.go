package telegram

import (
	"strings"
	"testing"
)

func TestStripToolCallTagsRemovesAllVariants(t *testing.T) {
	in := "before<tool>hidden</tool>middle<toolcall>also hidden</toolcall>after<tool-call>x</tool-call>end"
	got := stripToolCallTags(in)
	want := "beforemiddleafterend"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripToolCallTagsCollapsesExtraBlankLines(t *testing.T) {
	in := "line one\n\n\n\nline two"
	got := stripToolCallTags(in)
	want := "line one\n\nline two"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseAttachmentMarkersExtractsAndStrips(t *testing.T) {
	text, attachments := parseAttachmentMarkers("here is your file [DOCUMENT:report.pdf] enjoy")
	if text != "here is your file  enjoy" {
		t.Errorf("unexpected stripped text: %q", text)
	}
	if len(attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(attachments))
	}
	if attachments[0].Kind != AttachmentDocument || attachments[0].Target != "report.pdf" {
		t.Errorf("got %+v", attachments[0])
	}
}

func TestParseAttachmentMarkersLeavesUnrecognizedBracketsAlone(t *testing.T) {
	text, attachments := parseAttachmentMarkers("see [footnote 1] for details")
	if text != "see [footnote 1] for details" {
		t.Errorf("unrecognized marker should be preserved, got %q", text)
	}
	if len(attachments) != 0 {
		t.Errorf("expected no attachments, got %+v", attachments)
	}
}

func TestAttachmentKindFromMarkerAliases(t *testing.T) {
	cases := map[string]AttachmentKind{
		"image": AttachmentImage, "PHOTO": AttachmentImage,
		"file": AttachmentDocument, "document": AttachmentDocument,
		"video": AttachmentVideo, "audio": AttachmentAudio, "voice": AttachmentVoice,
	}
	for marker, want := range cases {
		got, ok := attachmentKindFromMarker(marker)
		if !ok || got != want {
			t.Errorf("marker %q: got (%v, %v), want %v", marker, got, ok, want)
		}
	}
	if _, ok := attachmentKindFromMarker("unknown"); ok {
		t.Error("expected unknown marker to be rejected")
	}
}

func TestInferAttachmentKindFromTargetByExtension(t *testing.T) {
	cases := map[string]AttachmentKind{
		"photo.png": AttachmentImage, "clip.mp4": AttachmentVideo,
		"song.mp3": AttachmentAudio, "note.ogg": AttachmentVoice,
		"report.pdf": AttachmentDocument,
	}
	for target, want := range cases {
		got, ok := inferAttachmentKindFromTarget(target)
		if !ok || got != want {
			t.Errorf("target %q: got (%v, %v), want %v", target, got, ok, want)
		}
	}
	if _, ok := inferAttachmentKindFromTarget("file.xyz"); ok {
		t.Error("unrecognized extension should not infer a kind")
	}
}

func TestParsePathOnlyAttachmentRecognizesBareURL(t *testing.T) {
	a, ok := parsePathOnlyAttachment("https://example.com/image.png", func(string) bool { return false })
	if !ok {
		t.Fatal("expected bare URL with image extension to be recognized")
	}
	if a.Kind != AttachmentImage || a.Target != "https://example.com/image.png" {
		t.Errorf("got %+v", a)
	}
}

func TestParsePathOnlyAttachmentRejectsMultiWordText(t *testing.T) {
	if _, ok := parsePathOnlyAttachment("here is a sentence.pdf about something", func(string) bool { return true }); ok {
		t.Error("multi-word text should not be treated as a bare attachment path")
	}
}

func TestParsePathOnlyAttachmentRequiresExistingLocalFile(t *testing.T) {
	if _, ok := parsePathOnlyAttachment("/tmp/does-not-exist.png", func(string) bool { return false }); ok {
		t.Error("local path that doesn't exist should not be treated as an attachment")
	}
	if _, ok := parsePathOnlyAttachment("/tmp/exists.png", func(string) bool { return true }); !ok {
		t.Error("local path confirmed to exist should be treated as an attachment")
	}
}

func TestSplitMessageUnderLimitReturnsSingleChunk(t *testing.T) {
	chunks := splitMessage("short message")
	if len(chunks) != 1 || chunks[0] != "short message" {
		t.Errorf("got %v", chunks)
	}
}

func TestSplitMessageOverLimitBreaksAtNewlineOrSpace(t *testing.T) {
	long := make([]byte, maxMessageLength+100)
	for i := range long {
		long[i] = 'a'
	}
	long[maxMessageLength-10] = ' '
	chunks := splitMessage(string(long))
	if len(chunks) < 2 {
		t.Fatalf("expected message over the limit to split into multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > maxMessageLength {
			t.Errorf("chunk of length %d exceeds max %d", len(c), maxMessageLength)
		}
	}
}

func TestContinuationTextMarksFirstMiddleLast(t *testing.T) {
	if got := continuationText("x", 0, 1); got != "x" {
		t.Errorf("single chunk should be unmarked, got %q", got)
	}
	first := continuationText("a", 0, 3)
	if !strings.HasSuffix(first, "(continues...)") {
		t.Errorf("first of many should end with a continues marker, got %q", first)
	}
	last := continuationText("c", 2, 3)
	if !strings.HasPrefix(last, "(continued)") {
		t.Errorf("last chunk should start with a continued marker, got %q", last)
	}
}
