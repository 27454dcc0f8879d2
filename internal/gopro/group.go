package gopro

import (
	"fmt"
	"sort"
	"strings"
)

// FileDescriptor describes one uploaded file as handed over by the upload
// surface. Immutable once created.
type FileDescriptor struct {
	OriginalName string
	StoredPath   string
	SizeBytes    int64
}

// Chapter binds a chapter number to its uploaded file within a sequence.
type Chapter struct {
	Number int
	File   FileDescriptor
}

// SequenceGroup collects the video chapters of one recording sequence,
// keyed by (encoding, sequence number) and ordered by chapter number.
type SequenceGroup struct {
	ID       string
	Encoding Encoding
	Sequence int
	Chapters []Chapter
}

// InputPaths returns the stored paths of the group's chapters in
// concatenation order.
func (g SequenceGroup) InputPaths() []string {
	paths := make([]string, len(g.Chapters))
	for i, chapter := range g.Chapters {
		paths[i] = chapter.File.StoredPath
	}
	return paths
}

// DuplicateChapterError reports two uploads claiming the same chapter slot
// within one sequence. Grouping never guesses which copy wins.
type DuplicateChapterError struct {
	GroupID string
	Chapter int
}

func (e *DuplicateChapterError) Error() string {
	return fmt.Sprintf("duplicate chapter %02d in sequence group %s", e.Chapter, e.GroupID)
}

// GroupID derives the stable group identifier for an encoding/sequence pair.
// The identifier is deterministic so repeated grouping of the same session
// yields the same IDs.
func GroupID(encoding Encoding, sequence int) string {
	return fmt.Sprintf("g%s%04d", strings.ToLower(string(encoding)), sequence)
}

// Group buckets descriptors into sequence groups. Files whose names do not
// match the chapter grammar, and recognized proxy or thumbnail files, are
// skipped; only video chapters participate. Output order is insertion order
// of the first chapter seen for each group, so a given input order always
// produces the same result. Zero groups is a normal outcome.
func Group(files []FileDescriptor) ([]SequenceGroup, error) {
	type bucket struct {
		group SequenceGroup
		seen  map[int]struct{}
	}

	buckets := make(map[string]*bucket)
	var order []string

	for _, file := range files {
		parsed, ok := Parse(file.OriginalName)
		if !ok || parsed.Extension != ExtVideo {
			continue
		}
		id := GroupID(parsed.Encoding, parsed.Sequence)
		b, ok := buckets[id]
		if !ok {
			b = &bucket{
				group: SequenceGroup{
					ID:       id,
					Encoding: parsed.Encoding,
					Sequence: parsed.Sequence,
				},
				seen: make(map[int]struct{}),
			}
			buckets[id] = b
			order = append(order, id)
		}
		if _, dup := b.seen[parsed.Chapter]; dup {
			return nil, &DuplicateChapterError{GroupID: id, Chapter: parsed.Chapter}
		}
		b.seen[parsed.Chapter] = struct{}{}
		b.group.Chapters = append(b.group.Chapters, Chapter{Number: parsed.Chapter, File: file})
	}

	groups := make([]SequenceGroup, 0, len(order))
	for _, id := range order {
		group := buckets[id].group
		sort.Slice(group.Chapters, func(i, j int) bool {
			return group.Chapters[i].Number < group.Chapters[j].Number
		})
		groups = append(groups, group)
	}
	return groups, nil
}
