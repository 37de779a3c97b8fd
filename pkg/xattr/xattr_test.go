package xattr

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func mustTime(t *testing.T, ms int64) time.Time {
	t.Helper()
	return time.UnixMilli(ms).UTC()
}

func TestGenerateFolderExtendedAttributes(t *testing.T) {
	mt := mustTime(t, 1234567890000)
	raw, ok := GenerateFolderExtendedAttributes(FolderGenerateInput{ModificationTime: &mt})
	if !ok {
		t.Fatalf("expected attributes to be generated")
	}
	want := `{"Common":{"ModificationTime":"2009-02-13T23:31:30.000Z"}}`
	if raw != want {
		t.Errorf("got %q want %q", raw, want)
	}

	if _, ok := GenerateFolderExtendedAttributes(FolderGenerateInput{}); ok {
		t.Errorf("expected no output for empty input")
	}
}

func TestGenerateFileExtendedAttributes(t *testing.T) {
	size := int64(0)
	raw, ok := GenerateFileExtendedAttributes(FileGenerateInput{Size: &size})
	if !ok || raw != `{"Common":{"Size":0}}` {
		t.Errorf("got %q, %v", raw, ok)
	}

	raw, ok = GenerateFileExtendedAttributes(FileGenerateInput{
		BlockSizes: []int64{4, 4, 4, 2},
		Digests:    &Digests{SHA1: "abcdef"},
	})
	want := `{"Common":{"BlockSizes":[4,4,4,2],"Digests":{"SHA1":"abcdef"}}}`
	if !ok || raw != want {
		t.Errorf("got %q want %q", raw, want)
	}

	if _, ok := GenerateFileExtendedAttributes(FileGenerateInput{}); ok {
		t.Errorf("expected no output for empty input")
	}
}

func TestParseFileExtendedAttributesLegacyBlockSort(t *testing.T) {
	logger := zerolog.Nop()
	raw := `{"Common":{"BlockSizes":[123,1024,1024,1024,1024]}}`

	old := ParseFileExtendedAttributes(logger, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), &raw)
	wantOld := []int64{1024, 1024, 1024, 1024, 123}
	if !int64SliceEqual(old.BlockSizes, wantOld) {
		t.Errorf("pre-2025 sort: got %v want %v", old.BlockSizes, wantOld)
	}

	recent := ParseFileExtendedAttributes(logger, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), &raw)
	wantRecent := []int64{123, 1024, 1024, 1024, 1024}
	if !int64SliceEqual(recent.BlockSizes, wantRecent) {
		t.Errorf("post-2025 order: got %v want %v", recent.BlockSizes, wantRecent)
	}
}

func TestParseNeverThrows(t *testing.T) {
	logger := zerolog.Nop()
	bad := `not json at all`
	folder := ParseFolderExtendedAttributes(logger, &bad)
	if folder == nil {
		t.Fatalf("expected non-nil struct even for garbage input")
	}

	file := ParseFileExtendedAttributes(logger, time.Now(), &bad)
	if file == nil {
		t.Fatalf("expected non-nil struct even for garbage input")
	}
}

func TestParseFilePreservesUnknownTopLevelKeys(t *testing.T) {
	logger := zerolog.Nop()
	raw := `{"Common":{"Size":5},"Media":{"Width":100}}`
	file := ParseFileExtendedAttributes(logger, time.Now(), &raw)
	if file.ClaimedAdditionalMetadata == nil {
		t.Fatalf("expected Media to be retained under ClaimedAdditionalMetadata")
	}
	if _, ok := file.ClaimedAdditionalMetadata["Media"]; !ok {
		t.Errorf("expected Media key to be retained")
	}
}

func int64SliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
