package storage

import "testing"

func TestDetectContentType(t *testing.T) {
	cases := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".JPG", "image/jpeg"},
		{".png", "image/png"},
		{".mp4", "video/mp4"},
		{".ogg", "audio/ogg"},
		{".pdf", "application/pdf"},
		{".xyz", "application/octet-stream"},
		{"", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := DetectContentType(tc.ext); got != tc.want {
			t.Errorf("DetectContentType(%q) = %q, want %q", tc.ext, got, tc.want)
		}
	}
}

func TestObjectKeyFromURL(t *testing.T) {
	s := &MinIOStorage{bucket: "huddle-media", publicURL: "https://cdn.huddle.local"}

	url := s.GetPublicURL("conversations/abc/def/file.png")
	if got := s.ObjectKeyFromURL(url); got != "conversations/abc/def/file.png" {
		t.Errorf("ObjectKeyFromURL round trip = %q", got)
	}

	if got := s.ObjectKeyFromURL("https://elsewhere.example/other-bucket/file.png"); got != "" {
		t.Errorf("foreign URL should yield empty key, got %q", got)
	}
}
