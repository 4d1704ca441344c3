package request

import (
	"strings"

	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/wire"
)

// extractArchive detaches a leading "ARCHIVE::signal" prefix from signal,
// mirroring original_source's extractArchive (makeRequestBlock.cpp:1029-1101):
// an archive name equal to the environment's default archive is discarded
// and the remainder rescanned recursively; any other legal archive name is
// recorded on rb.Archive and stripped from signal, unless the candidate
// conflicts with a subset bracket expression (spec.md §4.3 step 8). Skipped
// entirely when forwarding to a peer, whose signal must pass through
// untouched.
func extractArchive(rb *wire.RequestBlock, signal string, environment *env.Environment) (string, error) {
	if rb.PluginID == wire.PluginForwardToPeer || signal == "" {
		return signal, nil
	}

	delim := rb.APIDelim
	idx := strings.Index(signal, delim)
	if idx < 0 {
		return signal, nil
	}

	archive := strings.TrimSpace(signal[:idx])
	rest := signal[idx+len(delim):]

	if len(archive) > maxArchiveLen {
		return "", fails(ArchiveNameTooLong, "archive name %q exceeds %d bytes", archive, maxArchiveLen)
	}

	// A prefix matching the local default archive is discarded, not kept:
	// rescan the remainder in case it too is prefixed with an archive name.
	if environment.DefaultArchive != "" && strings.EqualFold(archive, environment.DefaultArchive) {
		return extractArchive(rb, strings.TrimSpace(rest), environment)
	}

	if !isLegalArchiveName(archive) {
		return signal, nil
	}

	// Conflict check: a delimiter that actually sits inside a subset
	// expression (e.g. "te[0::5]") must not be mistaken for an
	// ARCHIVE::signal separator.
	if archiveBracketConflict(archive, rest) {
		return signal, nil
	}

	rb.Archive = archive
	return strings.TrimSpace(rest), nil
}

// isLegalArchiveName rejects candidates that can't plausibly be an archive
// name: empty, or containing a path separator (original_source's
// IsLegalFilePath guard).
func isLegalArchiveName(s string) bool {
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, "/\\")
}

// archiveBracketConflict reimplements extractArchive's test1/test2: the
// candidate archive is rejected as a subset-bracket artefact if either the
// archive text itself opens a bracket whose content is empty/numeric, or the
// remainder closes one under the same condition.
func archiveBracketConflict(archive, rest string) bool {
	test1 := false
	if i := strings.IndexAny(archive, "[{"); i >= 0 {
		after := archive[i+1:]
		test1 = after == "" || isAllDigits(after)
	}
	test2 := false
	if i := strings.IndexAny(rest, "]}"); i >= 0 {
		before := rest[:i]
		test2 = before == "" || isAllDigits(before)
	}
	return test1 || test2
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
