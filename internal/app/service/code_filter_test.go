package service

import (
	"fmt"
	"testing"
)

func TestCodeFilter_NoFalseNegatives(t *testing.T) {
	filter := NewCodeFilter(10_000, 0.01)

	codes := make([]string, 1000)
	for i := range codes {
		codes[i] = fmt.Sprintf("code%04d", i)
	}
	filter.Warm(codes)

	for _, code := range codes {
		if !filter.MightContain(code) {
			t.Fatalf("filter reported added code %q as unseen", code)
		}
	}
}

func TestCodeFilter_NilIsAlwaysUnseen(t *testing.T) {
	var filter *CodeFilter

	filter.Add("abc123")
	filter.Warm([]string{"abc123"})
	if filter.MightContain("abc123") {
		t.Fatal("nil filter must report everything as unseen")
	}
}
