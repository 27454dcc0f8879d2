package gopro

import (
	"errors"
	"reflect"
	"testing"
)

func descriptor(name string) FileDescriptor {
	return FileDescriptor{OriginalName: name, StoredPath: "/uploads/" + name, SizeBytes: 1}
}

func descriptors(names ...string) []FileDescriptor {
	out := make([]FileDescriptor, len(names))
	for i, name := range names {
		out[i] = descriptor(name)
	}
	return out
}

func TestGroupSplitsByEncodingAndSequence(t *testing.T) {
	groups, err := Group(descriptors("GX010150.MP4", "GX020150.MP4", "GH010200.MP4"))
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	first := groups[0]
	if first.ID != "gx0150" || first.Encoding != EncodingHEVC || first.Sequence != 150 {
		t.Fatalf("unexpected first group: %+v", first)
	}
	if got := chapterNumbers(first); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("first group chapters = %v", got)
	}

	second := groups[1]
	if second.ID != "gh0200" || second.Encoding != EncodingAVC || second.Sequence != 200 {
		t.Fatalf("unexpected second group: %+v", second)
	}
	if got := chapterNumbers(second); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("second group chapters = %v", got)
	}
}

func TestGroupSortsOutOfOrderChapters(t *testing.T) {
	groups, err := Group(descriptors("GX030150.MP4", "GX010150.MP4", "GX020150.MP4"))
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if got := chapterNumbers(groups[0]); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Fatalf("chapters = %v", got)
	}
}

func TestGroupToleratesChapterGaps(t *testing.T) {
	groups, err := Group(descriptors("GX010150.MP4", "GX040150.MP4"))
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if got := chapterNumbers(groups[0]); !reflect.DeepEqual(got, []int{1, 4}) {
		t.Fatalf("chapters = %v", got)
	}
}

func TestGroupIgnoresUnrecognizedAndNonVideo(t *testing.T) {
	groups, err := Group(descriptors("IMG_001.JPG", "notes.txt", "GX010150.LRV", "GX010150.THM"))
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected zero groups, got %d", len(groups))
	}
}

func TestGroupExcludesProxyFromChapters(t *testing.T) {
	groups, err := Group(descriptors("GX010150.MP4", "GX010150.LRV", "GX010150.THM"))
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Chapters) != 1 {
		t.Fatalf("proxy or thumbnail leaked into chapters: %+v", groups)
	}
}

func TestGroupRejectsDuplicateChapters(t *testing.T) {
	_, err := Group(descriptors("GX010150.MP4", "GX010150.MP4"))
	var dup *DuplicateChapterError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateChapterError, got %v", err)
	}
	if dup.GroupID != "gx0150" || dup.Chapter != 1 {
		t.Fatalf("unexpected duplicate detail: %+v", dup)
	}
}

func TestGroupIsDeterministic(t *testing.T) {
	input := descriptors("GH010200.MP4", "GX020150.MP4", "GX010150.MP4")
	first, err := Group(input)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	second, err := Group(input)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("grouping is not idempotent:\n%+v\n%+v", first, second)
	}
	if first[0].ID != "gh0200" {
		t.Fatalf("output order should follow input order, got %s first", first[0].ID)
	}
}

func chapterNumbers(group SequenceGroup) []int {
	out := make([]int, len(group.Chapters))
	for i, chapter := range group.Chapters {
		out[i] = chapter.Number
	}
	return out
}
