package splitter

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// TextSplitter wraps the langchaingo recursive character splitter with a
// fixed window and overlap.
type TextSplitter struct {
	splitter     textsplitter.TextSplitter
	chunkSize    int
	chunkOverlap int
}

// NewRecursiveCharacterTextSplitter creates a splitter; the window must be
// strictly larger than the overlap.
func NewRecursiveCharacterTextSplitter(chunkSize, chunkOverlap int) (*TextSplitter, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkSize <= chunkOverlap {
		return nil, fmt.Errorf("invalid chunking: size %d must be positive and larger than overlap %d", chunkSize, chunkOverlap)
	}

	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	return &TextSplitter{splitter: ts, chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// SplitText splits text into chunks
func (ts *TextSplitter) SplitText(text string) ([]string, error) {
	return ts.splitter.SplitText(text)
}
