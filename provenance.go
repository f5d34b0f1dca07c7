package mediaidx

import "github.com/jmylchreest/mediaidx/internal/version"

// indexMagic is the fixed magic number stamped at the start of every
// serialized index.
const indexMagic uint32 = 0x53920873

// Source identifies a demuxer/container backend that may contribute
// tracks to an Index. Values are single bits so they can be tested
// against the EnabledSources mask; an index header records the one
// backend that produced it.
type Source uint32

// Known sources.
const (
	SourceLAVF       Source = 1 << iota // libavformat-style generic demuxer
	SourceMatroska                      // native Matroska demuxer
	SourceHaaliMPEG                     // Haali MPEG splitter
	SourceHaaliOGG                      // Haali OGG splitter
)

// EnabledSources is the set of backends this build of the indexer can
// use, consulted by resolveSource and by ReadIndex, which rejects an index
// whose recorded backend is not in the set.
var EnabledSources = SourceLAVF | SourceMatroska

// DependencyVersions records the versions of the decoding stack used to
// produce an index, so a reader can refuse an index built against an
// incompatible stack.
type DependencyVersions struct {
	Utility  uint32
	Format   uint32
	Codec    uint32
	Scaler   uint32
	PostProc uint32
}

// CurrentDependencyVersions is stamped into every index this build
// writes. It has no real multi-library decoding stack to report against,
// so every field tracks the single on-disk format version; a build that
// changes frame-directory semantics bumps version.FormatVersion and every
// field here moves in lockstep.
var CurrentDependencyVersions = DependencyVersions{
	Utility:  version.FormatVersion,
	Format:   version.FormatVersion,
	Codec:    version.FormatVersion,
	Scaler:   version.FormatVersion,
	PostProc: version.FormatVersion,
}

// archTag returns the stable 32-bit value distinguishing builds whose
// in-memory struct layouts are incompatible.
func archTag() uint32 {
	return version.Arch()
}
