package storage

import "testing"

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{prefix: "", key: "/examples/chinook.sqlite", want: "examples/chinook.sqlite"},
		{prefix: "bundled/", key: "chinook.sqlite", want: "bundled/chinook.sqlite"},
		{prefix: " / ", key: "a/./b.db", want: "a/b.db"},
	}
	for _, tt := range tests {
		got, err := NormalizeKey(tt.prefix, tt.key)
		if err != nil {
			t.Fatalf("NormalizeKey(%q, %q) error = %v", tt.prefix, tt.key, err)
		}
		if got != tt.want {
			t.Fatalf("NormalizeKey(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
		}
	}
}

func TestNormalizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "  ", "../secret.db", "a/../../b", ".."} {
		if _, err := NormalizeKey("bundled", key); err == nil {
			t.Fatalf("NormalizeKey(%q) expected error", key)
		}
	}
}
