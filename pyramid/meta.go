package pyramid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrInvalidMeta = errors.New("libwall: invalid pyramid metadata")

// MetaFileName is the metadata record inside the pyramid folder, used by
// the pyramid itself.
const MetaFileName = "pyramid.meta"

// Meta describes one built pyramid. Two copies exist on disk: one inside
// the folder and one beside it; the sidecar doubles as a fast existence
// check for callers.
type Meta struct {
	PyramidPath string
	Width       int
	Height      int
}

// SidecarPath returns the path of the metadata record stored beside the
// pyramid folder.
func SidecarPath(pyramidDir string) string {
	return filepath.Clean(pyramidDir) + ".meta"
}

// encode renders the record as a single line of escaped, space-separated,
// quoted tokens.
func (m Meta) encode() string {
	return fmt.Sprintf("%s %s %s\n",
		strconv.Quote(m.PyramidPath),
		strconv.Quote(strconv.Itoa(m.Width)),
		strconv.Quote(strconv.Itoa(m.Height)))
}

func decodeMeta(line string) (Meta, error) {
	var tokens []string
	rest := strings.TrimSpace(line)
	for rest != "" {
		quoted, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return Meta{}, fmt.Errorf("%w: %q", ErrInvalidMeta, line)
		}
		token, err := strconv.Unquote(quoted)
		if err != nil {
			return Meta{}, fmt.Errorf("%w: %q", ErrInvalidMeta, line)
		}
		tokens = append(tokens, token)
		rest = strings.TrimLeft(rest[len(quoted):], " \t\r\n")
	}
	if len(tokens) != 3 {
		return Meta{}, fmt.Errorf("%w: want 3 tokens, got %d", ErrInvalidMeta, len(tokens))
	}

	width, err := strconv.Atoi(tokens[1])
	if err != nil {
		return Meta{}, fmt.Errorf("%w: width %q", ErrInvalidMeta, tokens[1])
	}
	height, err := strconv.Atoi(tokens[2])
	if err != nil {
		return Meta{}, fmt.Errorf("%w: height %q", ErrInvalidMeta, tokens[2])
	}

	return Meta{PyramidPath: tokens[0], Width: width, Height: height}, nil
}

// WriteMeta writes both metadata records for a pyramid folder.
func WriteMeta(pyramidDir string, m Meta) error {
	line := []byte(m.encode())
	if err := os.WriteFile(filepath.Join(pyramidDir, MetaFileName), line, 0644); err != nil {
		return err
	}
	return os.WriteFile(SidecarPath(pyramidDir), line, 0644)
}

// ReadMeta reads a metadata record from either copy.
func ReadMeta(filePath string) (Meta, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Meta{}, err
	}
	return decodeMeta(string(data))
}
