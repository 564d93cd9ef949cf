package locator_test

import (
	"encoding/json"
	"errors"
	"testing"

	"wavelift/internal/locator"
	"wavelift/internal/services"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://www.youtube.com/watch?v=abc", true},
		{"http://youtu.be/abc", true},
		{"http://localhost:8080/media", true},
		{"https://192.168.1.20/file", true},
		{"https://[::1]:9000/x", true},
		{"HTTPS://EXAMPLE.ORG", true},
		{"ftp://example.com/file", false},
		{"https://", false},
		{"https://999.1.1.1/", false},
		{"https://exa mple.com", false},
		{"https://example.com:99999/", false},
		{"https://user:pw@example.com/", false},
		{"example.com/watch", false},
		{"https://-bad-.com", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := locator.ValidateURL(tt.url)
			if tt.valid && err != nil {
				t.Fatalf("expected %q valid, got %v", tt.url, err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatalf("expected %q invalid", tt.url)
				}
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected validation marker, got %v", err)
				}
			}
		})
	}
}

func TestDecodeVariants(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{`"https://example.com/a"`, locator.BareURL("https://example.com/a")},
		{`"alice|https://example.com/a|Title"`, locator.Delimited("alice|https://example.com/a|Title")},
		{`{"video_url":"https://example.com/a","owner":"bob","title":"T"}`, locator.Structured{URL: "https://example.com/a", Owner: "bob", Title: "T"}},
		{`{"url":"https://example.com/b","user":"carol"}`, locator.Structured{URL: "https://example.com/b", Owner: "carol"}},
		{`42`, locator.Unsupported{Raw: "42"}},
		{`{broken`, locator.Unsupported{Raw: "{broken"}},
	}
	for _, tt := range tests {
		got := locator.Decode(json.RawMessage(tt.raw))
		if got != tt.want {
			t.Fatalf("Decode(%s) = %#v, want %#v", tt.raw, got, tt.want)
		}
	}
}

func TestExtractJSONMixedBatch(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`"https://example.com/watch?v=1"`),
		json.RawMessage(`{"video_url":"https://example.com/watch?v=2","owner":"dana"}`),
		json.RawMessage(`"erin|https://example.com/watch?v=3|Third | part"`),
		json.RawMessage(`"not a url"`),
		json.RawMessage(`{"video_url":""}`),
		json.RawMessage(`"frank|ftp://example.com/x"`),
		json.RawMessage(`null`),
	}

	items, rejections := locator.ExtractJSON(raw)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(items), items)
	}
	if len(rejections) != 4 {
		t.Fatalf("expected 4 rejections, got %d: %+v", len(rejections), rejections)
	}
	if items[1].OwnerHint != "dana" {
		t.Fatalf("expected structured owner, got %+v", items[1])
	}
	third := items[2]
	if third.OwnerHint != "erin" || third.Locator != "https://example.com/watch?v=3" || third.TitleHint != "Third | part" {
		t.Fatalf("unexpected delimited item: %+v", third)
	}
	wantIdx := []int{3, 4, 5, 6}
	for i, rej := range rejections {
		if rej.Index != wantIdx[i] {
			t.Fatalf("rejection %d index = %d, want %d", i, rej.Index, wantIdx[i])
		}
		if rej.Reason == "" {
			t.Fatalf("rejection %d missing reason", i)
		}
	}
}

func TestExtractEmptyBatch(t *testing.T) {
	items, rejections := locator.Extract(nil)
	if len(items) != 0 || len(rejections) != 0 {
		t.Fatalf("expected nothing, got %v %v", items, rejections)
	}
}

func TestExtractNilRecord(t *testing.T) {
	items, rejections := locator.Extract([]locator.RawRecord{nil, locator.BareURL("https://example.com")})
	if len(items) != 1 || len(rejections) != 1 || rejections[0].Index != 0 {
		t.Fatalf("unexpected result: %v %v", items, rejections)
	}
}
