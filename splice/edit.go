package splice

import (
	"fmt"
	"go/token"

	"rsc.io/rf/edit"
)

// editBuffer queues edits against the original text of one file, like edit.Buffer but keyed by token.Pos.
// Edits never shift the positions of later ones, they are all resolved against the original offsets.
type editBuffer struct {
	file *token.File
	src  []byte
	ed   *edit.Buffer
}

func newEditBuffer(file *token.File, src []byte) *editBuffer {
	return &editBuffer{file: file, src: src, ed: edit.NewBuffer(src)}
}

func (b *editBuffer) offset(pos token.Pos) int {
	return b.file.Offset(pos)
}

// Insert queues text to be inserted at pos. Inserts at the same position keep their queue order.
func (b *editBuffer) Insert(pos token.Pos, text string) {
	b.ed.Insert(b.offset(pos), text)
}

// Replace queues text to replace the original range [start, end).
func (b *editBuffer) Replace(start, end token.Pos, text string) {
	b.ed.Replace(b.offset(start), b.offset(end), text)
}

// Slice returns the original text in [start, end).
func (b *editBuffer) Slice(start, end token.Pos) []byte {
	return b.src[b.offset(start):b.offset(end)]
}

// Bytes applies the queued edits to a copy of the original text. Overlapping edits are returned as an error.
func (b *editBuffer) Bytes() (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %s: %v", ErrRewriteInvalid, b.file.Name(), r)
		}
	}()
	return b.ed.Bytes(), nil
}
