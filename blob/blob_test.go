package blob

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFileKey(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://utfs.io/f/abc123", "abc123"},
		{"https://utfs.io/f/abc123?x=1", "abc123"},
		{"https://example.com/images/photo.png", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := FileKey(tc.url); got != tc.want {
			t.Errorf("FileKey(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestClientDeleteMany(t *testing.T) {
	var gotKeys []string
	var gotSecret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Uploadthing-Api-Key")
		var body struct {
			FileKeys []string `json:"fileKeys"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		gotKeys = body.FileKeys
		json.NewEncoder(w).Encode(map[string]any{"success": true, "deletedCount": len(body.FileKeys)})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")
	n, err := client.DeleteMany(context.Background(), []string{
		"https://utfs.io/f/key-1",
		"https://utfs.io/f/key-2",
		"https://example.com/not-managed.png",
	})
	if err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted count = %d, want 2", n)
	}
	if len(gotKeys) != 2 || gotKeys[0] != "key-1" || gotKeys[1] != "key-2" {
		t.Fatalf("sent keys = %v", gotKeys)
	}
	if gotSecret != "sk_test" {
		t.Fatalf("api key header = %q", gotSecret)
	}
}
