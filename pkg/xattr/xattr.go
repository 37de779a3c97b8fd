package xattr

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

const isoLayout = "2006-01-02T15:04:05.000Z"

// legacyBlockSizeCutoff is the date extended attributes created before
// which have their BlockSizes re-sorted descending on read, to compensate
// for a historical bug in how block sizes used to be emitted.
var legacyBlockSizeCutoff = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// Digests holds content-hash digests carried in Common.Digests.
type Digests struct {
	SHA1 string
}

// FolderGenerateInput is the set of fields that can be encoded into a
// folder's extended attributes.
type FolderGenerateInput struct {
	ModificationTime *time.Time
}

// FileGenerateInput is the set of fields that can be encoded into a file's
// extended attributes.
type FileGenerateInput struct {
	ModificationTime *time.Time
	Size             *int64
	BlockSizes       []int64
	Digests          *Digests
}

// ParsedFolderExtendedAttributes is the result of parsing a folder's
// extended attributes. A nil field means the field was absent or failed
// to parse.
type ParsedFolderExtendedAttributes struct {
	ModificationTime *time.Time
}

// ParsedFileExtendedAttributes is the result of parsing a file's extended
// attributes.
type ParsedFileExtendedAttributes struct {
	ModificationTime *time.Time
	Size             *int64
	BlockSizes       []int64
	Digests          *Digests

	// ClaimedAdditionalMetadata retains any top-level key this package
	// does not interpret (Media, Camera, Location, ...) so round-tripping
	// through an older or newer client never silently drops data.
	ClaimedAdditionalMetadata map[string]json.RawMessage
}

type wireCommon struct {
	ModificationTime *string  `json:"ModificationTime,omitempty"`
	Size             *int64   `json:"Size,omitempty"`
	BlockSizes       []int64  `json:"BlockSizes,omitempty"`
	Digests          *Digests `json:"Digests,omitempty"`
}

type wireAttributes struct {
	Common *wireCommon `json:"Common,omitempty"`
}

// GenerateFolderExtendedAttributes encodes a folder's extended attributes.
// The second return is false when there is nothing to encode, in which
// case no extended attributes should be sent at all.
func GenerateFolderExtendedAttributes(in FolderGenerateInput) (string, bool) {
	if in.ModificationTime == nil {
		return "", false
	}
	ts := in.ModificationTime.UTC().Format(isoLayout)
	raw, err := json.Marshal(wireAttributes{Common: &wireCommon{ModificationTime: &ts}})
	if err != nil {
		// wireAttributes is always marshalable; this would be a bug, not
		// a user-triggerable condition.
		return "", false
	}
	return string(raw), true
}

// GenerateFileExtendedAttributes encodes a file's extended attributes,
// omitting Common entirely when no field is present.
func GenerateFileExtendedAttributes(in FileGenerateInput) (string, bool) {
	common := &wireCommon{}
	hasCommon := false

	if in.ModificationTime != nil {
		ts := in.ModificationTime.UTC().Format(isoLayout)
		common.ModificationTime = &ts
		hasCommon = true
	}
	if in.Size != nil {
		common.Size = in.Size
		hasCommon = true
	}
	if len(in.BlockSizes) > 0 {
		common.BlockSizes = in.BlockSizes
		hasCommon = true
	}
	if in.Digests != nil && in.Digests.SHA1 != "" {
		common.Digests = in.Digests
		hasCommon = true
	}

	if !hasCommon {
		return "", false
	}

	raw, err := json.Marshal(wireAttributes{Common: common})
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// ParseFolderExtendedAttributes parses a folder's extended attributes.
// raw may be nil (no attributes present); parsing never returns an error,
// it logs a warning and returns a struct with the offending fields left
// empty.
func ParseFolderExtendedAttributes(logger zerolog.Logger, raw *string) *ParsedFolderExtendedAttributes {
	out := &ParsedFolderExtendedAttributes{}
	if raw == nil || *raw == "" {
		return out
	}

	var wire wireAttributes
	if err := json.Unmarshal([]byte(*raw), &wire); err != nil {
		logger.Warn().Err(err).Msg("folder extended attributes are not valid JSON")
		return out
	}
	if wire.Common == nil {
		return out
	}
	out.ModificationTime = parseModificationTime(logger, wire.Common.ModificationTime)
	return out
}

// ParseFileExtendedAttributes parses a file's extended attributes.
// creationTime is the node's creation time, needed to decide whether the
// pre-2025-01-01 block-sizes compatibility shim applies.
func ParseFileExtendedAttributes(logger zerolog.Logger, creationTime time.Time, raw *string) *ParsedFileExtendedAttributes {
	out := &ParsedFileExtendedAttributes{}
	if raw == nil || *raw == "" {
		return out
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(*raw), &top); err != nil {
		logger.Warn().Err(err).Msg("file extended attributes are not valid JSON")
		return out
	}

	if commonRaw, ok := top["Common"]; ok {
		var common wireCommon
		if err := json.Unmarshal(commonRaw, &common); err != nil {
			logger.Warn().Err(err).Msg("Common extended attributes block is malformed")
		} else {
			out.ModificationTime = parseModificationTime(logger, common.ModificationTime)
			out.Size = common.Size
			out.Digests = common.Digests
			out.BlockSizes = sortBlockSizesForRead(creationTime, common.BlockSizes)
		}
		delete(top, "Common")
	}

	if len(top) > 0 {
		out.ClaimedAdditionalMetadata = top
	}
	return out
}

func parseModificationTime(logger zerolog.Logger, raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	t, err := time.Parse(isoLayout, *raw)
	if err != nil {
		// Fall back to RFC3339Nano for payloads from clients that didn't
		// pad to millisecond precision.
		t, err = time.Parse(time.RFC3339Nano, *raw)
	}
	if err != nil {
		logger.Warn().Str("value", *raw).Err(err).Msg("ModificationTime is not a valid date")
		return nil
	}
	// Round-trip through the wire layout: a date whose components can't
	// be represented (e.g. year out of range) is rejected here even if
	// time.Parse happened to accept it.
	if _, err := json.Marshal(t.UTC().Format(isoLayout)); err != nil {
		logger.Warn().Str("value", *raw).Msg("ModificationTime does not round-trip")
		return nil
	}
	t = t.UTC()
	return &t
}

func sortBlockSizesForRead(creationTime time.Time, blockSizes []int64) []int64 {
	if len(blockSizes) == 0 {
		return nil
	}
	out := make([]int64, len(blockSizes))
	copy(out, blockSizes)
	if creationTime.Before(legacyBlockSizeCutoff) {
		sortDescending(out)
	}
	return out
}

func sortDescending(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] < s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
