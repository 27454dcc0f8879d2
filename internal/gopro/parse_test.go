package gopro

import "testing"

func TestParseRecognizedNames(t *testing.T) {
	cases := []struct {
		name string
		want ParsedName
	}{
		{"GX010150.MP4", ParsedName{EncodingHEVC, 1, 150, ExtVideo}},
		{"GH020150.MP4", ParsedName{EncodingAVC, 2, 150, ExtVideo}},
		{"gx130042.mp4", ParsedName{EncodingHEVC, 13, 42, ExtVideo}},
		{"GX010150.LRV", ParsedName{EncodingHEVC, 1, 150, ExtProxy}},
		{"GX010150.THM", ParsedName{EncodingHEVC, 1, 150, ExtThumbnail}},
		{"Gh990001.Mp4", ParsedName{EncodingAVC, 99, 1, ExtVideo}},
		{"GX010000.MP4", ParsedName{EncodingHEVC, 1, 0, ExtVideo}},
	}
	for _, tc := range cases {
		parsed, ok := Parse(tc.name)
		if !ok {
			t.Fatalf("Parse(%q) not recognized", tc.name)
		}
		if parsed != tc.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.name, parsed, tc.want)
		}
	}
}

func TestParseUnrecognizedNames(t *testing.T) {
	cases := []string{
		"",
		"IMG_001.JPG",
		"notes.txt",
		"GX10150.MP4",    // chapter has one digit
		"GX0101500.MP4",  // sequence has five digits
		"GZ010150.MP4",   // unknown encoding
		"GX010150.AVI",   // unknown extension
		"GX010150",       // no extension
		"AGX010150.MP4",  // leading junk
		"GX010150.MP4 x", // trailing junk
	}
	for _, name := range cases {
		if _, ok := Parse(name); ok {
			t.Fatalf("Parse(%q) unexpectedly recognized", name)
		}
	}
}

func TestParseChapterZeroRejected(t *testing.T) {
	if _, ok := Parse("GX000150.MP4"); ok {
		t.Fatal("chapter 00 should not be recognized")
	}
}
