package domain

import "testing"

type stubClassifier map[string]string

func (s stubClassifier) Classify(url, _ string) (string, bool) {
	cat, ok := s[url]
	return cat, ok
}

func TestDefaultRulesClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url   string
		title string
		want  string
	}{
		{url: "https://github.com/golang/go", want: CategoryCode},
		{url: "https://www.youtube.com/watch?v=1", want: CategoryVideo},
		{url: "https://old.reddit.com/r/golang", want: CategorySocial},
		{url: "https://en.wikipedia.org/wiki/Go", want: CategoryStudy},
		{url: "https://mail.google.com/mail/u/0", want: CategoryMail},
		{url: "https://www.google.com/search?q=go", want: CategorySearch},
		{url: "https://example.com/docs/intro", want: CategoryDocs},
		{url: "https://blog.example.com/post", title: "A Tutorial on Channels", want: CategoryStudy},
		{url: "https://example.com/", want: CategoryOther},
	}
	rules := DefaultRules()
	for _, tc := range tests {
		if got := Categorize(rules, tc.url, tc.title); got != tc.want {
			t.Fatalf("%s: expected %s got %s", tc.url, tc.want, got)
		}
	}
}

func TestChainClassifierPrefersEarlierAndSkipsUnknown(t *testing.T) {
	t.Parallel()

	chain := ChainClassifier{
		stubClassifier{"https://github.com/x": CategoryGames, "https://a.test": "Bogus"},
		DefaultRules(),
	}
	if got := Categorize(chain, "https://github.com/x", ""); got != CategoryGames {
		t.Fatalf("override should win, got %s", got)
	}
	if got := Categorize(chain, "https://a.test", ""); got != CategoryOther {
		t.Fatalf("unknown category should fall through, got %s", got)
	}
	if got := Categorize(nil, "https://www.netflix.com/", ""); got != CategoryVideo {
		t.Fatalf("nil classifier should use default rules, got %s", got)
	}
}

func TestGroupsNeverOpposeNeutral(t *testing.T) {
	t.Parallel()

	if !OppositeGroups(CategoryGroup(CategoryStudy), CategoryGroup(CategoryVideo)) {
		t.Fatalf("study and video should oppose")
	}
	if OppositeGroups(CategoryGroup(CategoryStudy), CategoryGroup(CategoryCode)) {
		t.Fatalf("same group should not oppose")
	}
	if OppositeGroups(CategoryGroup(CategoryNews), CategoryGroup(CategoryVideo)) {
		t.Fatalf("neutral never opposes")
	}
	if CategoryMultiplier("nope") != 1.0 {
		t.Fatalf("unknown multiplier should be 1")
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"HTTPS://Example.COM:443/a/b/?utm_source=x&q=1#frag": "https://example.com/a/b?q=1",
		"http://example.com:80/":                              "http://example.com",
		"  https://example.com/path  ":                        "https://example.com/path",
		"chrome://newtab":                                     "chrome://newtab",
		"":                                                    "",
	}
	for in, want := range tests {
		if got := NormalizeURL(in); got != want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
	if IsTrackable("chrome://newtab") || !IsTrackable("https://example.com") {
		t.Fatalf("unexpected trackability")
	}
	if Domain("https://www.Example.com:8080/x") != "example.com" {
		t.Fatalf("unexpected domain")
	}
}
