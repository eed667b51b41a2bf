// Package pyramid builds and reads the on-disk tile pyramid layout: one
// image file per quadtree node, named by its root-to-node path, plus a
// sidecar metadata record.
package pyramid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eak1mov/go-libwall/tile"
)

var ErrInvalidPath = errors.New("libwall: invalid tree path")

// TreePath addresses a quadtree node by its quadrant digits from the root.
// The empty path is the root. Quadrants are numbered 0..3, bit 0 selecting
// the right half and bit 1 the bottom half.
//
// Paths are the stable node addresses of the pyramid: files are named by
// them and lookups go through them, never through live parent pointers.
type TreePath []uint8

// String renders the file-name form: digits joined by '-', the root always
// prefixed "0". Examples: "0", "0-2", "0-2-3".
func (p TreePath) String() string {
	var b strings.Builder
	b.WriteByte('0')
	for _, q := range p {
		b.WriteByte('-')
		b.WriteByte('0' + q)
	}
	return b.String()
}

// ParsePath is the inverse of String.
func ParsePath(s string) (TreePath, error) {
	parts := strings.Split(s, "-")
	if parts[0] != "0" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}
	path := make(TreePath, 0, len(parts)-1)
	for _, part := range parts[1:] {
		if len(part) != 1 || part[0] < '0' || part[0] > '3' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
		path = append(path, part[0]-'0')
	}
	return path, nil
}

// Child returns the path extended by one quadrant.
func (p TreePath) Child(quadrant uint8) TreePath {
	child := make(TreePath, len(p)+1)
	copy(child, p)
	child[len(p)] = quadrant
	return child
}

// ID converts the path to pyramid tile coordinates; the path length is the
// level.
func (p TreePath) ID() tile.ID {
	id := tile.ID{Level: uint32(len(p))}
	for _, q := range p {
		id.X = id.X<<1 | uint32(q&1)
		id.Y = id.Y<<1 | uint32(q>>1)
	}
	return id
}

// PathForID is the inverse of ID.
func PathForID(id tile.ID) TreePath {
	path := make(TreePath, id.Level)
	for i := uint32(0); i < id.Level; i++ {
		shift := id.Level - 1 - i
		x := (id.X >> shift) & 1
		y := (id.Y >> shift) & 1
		path[i] = uint8(y<<1 | x)
	}
	return path
}
