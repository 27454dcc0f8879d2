package gopro

import (
	"regexp"
	"strconv"
	"strings"
)

// Encoding identifies the camera compression variant encoded in a filename.
type Encoding string

// GH-prefixed chapters carry AVC streams, GX-prefixed chapters carry HEVC.
const (
	EncodingAVC  Encoding = "H"
	EncodingHEVC Encoding = "X"
)

// Extension classifies the file kind carried by a recognized name.
type Extension string

const (
	ExtVideo     Extension = "video"
	ExtProxy     Extension = "proxy"
	ExtThumbnail Extension = "thumbnail"
)

// ParsedName is the structured form of a recognized chapter filename.
type ParsedName struct {
	Encoding  Encoding
	Chapter   int
	Sequence  int
	Extension Extension
}

// namePattern matches G<encoding:1><chapter:2><sequence:4>.<ext>, for
// example GX010150.MP4. Matching is case-insensitive end to end.
var namePattern = regexp.MustCompile(`^[Gg]([HhXx])(\d{2})(\d{4})\.([A-Za-z0-9]+)$`)

// Parse derives a ParsedName from a raw filename. The second return value
// reports whether the name matched the chapter grammar; a non-match is a
// normal outcome, never an error.
func Parse(name string) (ParsedName, bool) {
	m := namePattern.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return ParsedName{}, false
	}
	ext, ok := parseExtension(m[4])
	if !ok {
		return ParsedName{}, false
	}
	chapter, err := strconv.Atoi(m[2])
	if err != nil || chapter < 1 {
		return ParsedName{}, false
	}
	sequence, err := strconv.Atoi(m[3])
	if err != nil {
		return ParsedName{}, false
	}
	return ParsedName{
		Encoding:  Encoding(strings.ToUpper(m[1])),
		Chapter:   chapter,
		Sequence:  sequence,
		Extension: ext,
	}, true
}

func parseExtension(value string) (Extension, bool) {
	switch strings.ToUpper(value) {
	case "MP4":
		return ExtVideo, true
	case "LRV":
		return ExtProxy, true
	case "THM":
		return ExtThumbnail, true
	default:
		return "", false
	}
}
