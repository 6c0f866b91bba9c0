package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestStores_RoundTrip(t *testing.T) {
	fs, err := NewFSStore(t.TempDir(), "http://localhost:8086/files")
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	stores := map[string]Store{
		"memory": NewMemoryStore("http://localhost:8086/files"),
		"fs":     fs,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			url, err := store.Put(ctx, "scan-1.pdf", "application/pdf", strings.NewReader("pdf-bytes"))
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if url != "http://localhost:8086/files/scan-1.pdf" {
				t.Fatalf("unexpected url: %s", url)
			}

			rc, err := store.Open(ctx, "scan-1.pdf")
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if string(data) != "pdf-bytes" {
				t.Fatalf("unexpected content: %q", data)
			}

			if err := store.Remove(ctx, "scan-1.pdf"); err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
			if _, err := store.Open(ctx, "scan-1.pdf"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after remove, got %v", err)
			}
		})
	}
}

func TestStores_RejectTraversalKeys(t *testing.T) {
	fs, err := NewFSStore(t.TempDir(), "http://x")
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	for _, key := range []string{"", "../etc/passwd", "a/b", "a b"} {
		if _, err := fs.Put(context.Background(), key, "", strings.NewReader("x")); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Put(%q): expected ErrInvalidKey, got %v", key, err)
		}
	}
}
