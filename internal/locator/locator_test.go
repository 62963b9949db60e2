package locator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sellerstudio/imageprep/internal/config"
)

func TestLocate_PriorityShortCircuit(t *testing.T) {
	p := config.Product{
		UserSelected:     "https://a.example/1.jpg\nhttps://a.example/2.jpg",
		SupplierParsed:   "https://b.example/1.jpg",
		PlatformOriginal: "https://c.example/1.jpg",
	}
	got := Locate(p, 10)
	if len(got) != 2 {
		t.Fatalf("Locate returned %d candidates, want 2", len(got))
	}
	for i, c := range got {
		if c.Source != SourceUserSelected {
			t.Errorf("candidate %d source = %v, want user_selected", i, c.Source)
		}
		if !strings.HasPrefix(c.URL, "https://a.example/") {
			t.Errorf("candidate %d URL = %q, want user-selected tier only", i, c.URL)
		}
	}
}

func TestLocate_FallsThroughEmptyTiers(t *testing.T) {
	p := config.Product{
		UserSelected:     "   \n ftp://nope.example/x ",
		SupplierParsed:   "",
		PlatformOriginal: "https://c.example/1.jpg, https://c.example/2.jpg",
	}
	got := Locate(p, 10)
	if len(got) != 2 {
		t.Fatalf("Locate returned %d candidates, want 2", len(got))
	}
	if got[0].Source != SourcePlatformOriginal {
		t.Errorf("source = %v, want platform_original", got[0].Source)
	}
}

func TestLocate_DedupPreservesFirstSeenOrder(t *testing.T) {
	p := config.Product{
		UserSelected: "https://x.example/a.jpg,https://x.example/b.jpg\nhttps://x.example/a.jpg",
	}
	got := Locate(p, 10)
	want := []string{"https://x.example/a.jpg", "https://x.example/b.jpg"}
	if len(got) != len(want) {
		t.Fatalf("Locate returned %d candidates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].URL != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, got[i].URL, want[i])
		}
	}
}

func TestLocate_DedupIsCaseSensitive(t *testing.T) {
	p := config.Product{
		UserSelected: "https://x.example/A.jpg\nhttps://x.example/a.jpg",
	}
	if got := Locate(p, 10); len(got) != 2 {
		t.Errorf("Locate returned %d candidates, want 2 (case-sensitive dedup)", len(got))
	}
}

func TestLocate_BatchCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 14; i++ {
		fmt.Fprintf(&sb, "https://x.example/%d.jpg\n", i)
	}
	got := Locate(config.Product{SupplierParsed: sb.String()}, 10)
	if len(got) != 10 {
		t.Fatalf("Locate returned %d candidates, want 10", len(got))
	}
	for i := 0; i < 10; i++ {
		want := fmt.Sprintf("https://x.example/%d.jpg", i)
		if got[i].URL != want {
			t.Errorf("candidate %d = %q, want %q (original order)", i, got[i].URL, want)
		}
	}
}

func TestLocate_NothingToProcess(t *testing.T) {
	got := Locate(config.Product{UserSelected: "not a url, also-not"}, 10)
	if got != nil {
		t.Errorf("Locate = %v, want nil for no valid URLs", got)
	}
}

func TestURLs(t *testing.T) {
	cands := []Candidate{{URL: "https://x/1"}, {URL: "https://x/2"}}
	got := URLs(cands)
	if len(got) != 2 || got[0] != "https://x/1" || got[1] != "https://x/2" {
		t.Errorf("URLs = %v, want projected slice in order", got)
	}
}
