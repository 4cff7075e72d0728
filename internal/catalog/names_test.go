package catalog

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRenderDisplayName(t *testing.T) {
	cases := []struct {
		scale int
		name  string
		tags  []string
		want  string
	}{
		{4, "Nomos8k", []string{"Anime"}, "[4X] Nomos8k (Anime)"},
		{1, "DeJPEG", nil, "[1X] DeJPEG"},
		{2, "RealESRGAN", []string{"Photography", "Restoration"}, "[2X] RealESRGAN (Photography, Restoration)"},
	}
	for _, tc := range cases {
		got := renderDisplayName(tc.scale, tc.name, tc.tags)
		if got != tc.want {
			t.Errorf("renderDisplayName(%d, %q, %v) = %q, want %q", tc.scale, tc.name, tc.tags, got, tc.want)
		}
	}
}

func TestRenderDisplayNameDropsTagsProgressively(t *testing.T) {
	name := strings.Repeat("n", 60)
	got := renderDisplayName(4, name, []string{"First", "Second", "Third"})
	if utf8.RuneCountInString(got) > displayNameMax {
		t.Fatalf("display name %d runes, cap is %d: %q", utf8.RuneCountInString(got), displayNameMax, got)
	}
	if !strings.Contains(got, "First") {
		t.Errorf("leftmost tag dropped too early: %q", got)
	}
	if strings.Contains(got, "Second") || strings.Contains(got, "Third") {
		t.Errorf("right tags should be dropped first: %q", got)
	}
}

func TestRenderDisplayNameCollapsesTagsToEllipsis(t *testing.T) {
	name := strings.Repeat("c", 69)
	got := renderDisplayName(4, name, []string{"Compression Removal"})
	if !strings.HasSuffix(got, " (...)") {
		t.Fatalf("want collapsed tag marker, got %q", got)
	}
	if utf8.RuneCountInString(got) > displayNameMax {
		t.Fatalf("display name %d runes, cap is %d", utf8.RuneCountInString(got), displayNameMax)
	}
}

func TestRenderDisplayNameFallsBackToTrimmedName(t *testing.T) {
	// Even the collapsed "(...)" form overflows here, so the name itself
	// is trimmed and marked.
	name := strings.Repeat("f", 75)
	got := renderDisplayName(4, name, []string{"Anime"})
	if !strings.HasSuffix(got, "...") || strings.Contains(got, "(") {
		t.Fatalf("want trimmed raw name, got %q", got)
	}
	if n := utf8.RuneCountInString(got); n != displayNameMax {
		t.Fatalf("trimmed name is %d runes, want %d: %q", n, displayNameMax, got)
	}
}

func TestRenderDisplayNameTruncatesMultibyteName(t *testing.T) {
	name := strings.Repeat("画", 100)
	got := renderDisplayName(4, name, nil)
	if n := utf8.RuneCountInString(got); n != displayNameMax {
		t.Fatalf("truncated name is %d runes, want %d", n, displayNameMax)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("want trim marker, got %q", got)
	}
}

func TestTagNamesImpliedDropped(t *testing.T) {
	tags := map[string]remoteTag{
		"anime":       {Name: "Anime", Implies: []string{"cartoon"}},
		"cartoon":     {Name: "Cartoon"},
		"restoration": {Name: "Restoration"},
	}
	got := tagNames([]string{"cartoon", "anime", "restoration"}, tags, nil)
	want := []string{"Anime", "Restoration"}
	if len(got) != len(want) {
		t.Fatalf("tagNames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tagNames = %v, want %v", got, want)
		}
	}
}

func TestTagNamesAllowedFilter(t *testing.T) {
	tags := map[string]remoteTag{
		"anime":    {Name: "Anime"},
		"pretrain": {Name: "Pretrained"},
	}
	allowed := map[string]bool{"anime": true}
	got := tagNames([]string{"pretrain", "anime"}, tags, allowed)
	if len(got) != 1 || got[0] != "Anime" {
		t.Fatalf("tagNames = %v, want [Anime]", got)
	}
}

func TestTagNamesUnknownIgnored(t *testing.T) {
	tags := map[string]remoteTag{"anime": {Name: "Anime"}}
	got := tagNames([]string{"anime", "missing"}, tags, nil)
	if len(got) != 1 || got[0] != "Anime" {
		t.Fatalf("tagNames = %v, want [Anime]", got)
	}
}
