// Package chunk splits document text into bounded, line-addressable segments
// suitable for independent embedding.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the soft upper bound, in characters, of a chunk's content.
const DefaultMaxLength = 1000

// MaxParagraphs bounds the number of segments returned by Paragraphs.
const MaxParagraphs = 50

// Chunk is one contiguous run of whole lines from a document.
type Chunk struct {
	Content string

	// StartLine and EndLine are 1-based and inclusive.
	StartLine int
	EndLine   int
}

// Split scans content line by line and groups consecutive lines into chunks
// whose content does not exceed maxLength characters. A single line longer
// than maxLength is kept whole as its own chunk. A non-positive maxLength
// falls back to DefaultMaxLength. Empty content yields no chunks.
func Split(content string, maxLength int) []Chunk {
	if content == "" {
		return nil
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	var (
		chunks  []Chunk
		buf     []string
		bufLen  int
		start   = 1
		lineNum = 1
	)

	flush := func(end int) {
		chunks = append(chunks, Chunk{
			Content:   strings.Join(buf, "\n"),
			StartLine: start,
			EndLine:   end,
		})
	}

	for _, line := range strings.Split(content, "\n") {
		lineLen := utf8.RuneCountInString(line)

		candidate := lineLen
		if len(buf) > 0 {
			candidate = bufLen + 1 + lineLen
		}

		// bufLen counts characters, so a buffer holding a single blank line
		// is still empty and keeps accumulating.
		if candidate > maxLength && bufLen > 0 {
			flush(lineNum - 1)
			buf = []string{line}
			bufLen = lineLen
			start = lineNum
		} else {
			buf = append(buf, line)
			bufLen = candidate
		}
		lineNum++
	}

	if bufLen > 0 {
		flush(lineNum - 1)
	}

	return chunks
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Paragraphs splits a transcript on blank lines, returning at most
// MaxParagraphs segments in order.
func Paragraphs(transcript string) []string {
	if strings.TrimSpace(transcript) == "" {
		return nil
	}

	segments := paragraphBreak.Split(transcript, -1)
	if len(segments) > MaxParagraphs {
		segments = segments[:MaxParagraphs]
	}
	return segments
}
