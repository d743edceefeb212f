package packet

// Protocol delimiters
const (
	// Newline terminates every header line.
	Newline = "\n"

	// HeaderTerminator ends a non-empty header block (last line + blank line).
	HeaderTerminator = "\n\n"

	// Separator splits a header line into name and contents.
	Separator = ':'

	// Quote wraps names and contents that must keep edge whitespace,
	// embedded colons, or their String kind.
	Quote = '"'
)

const (
	literalTrue  = "True"
	literalFalse = "False"
)

// Reserved and well-known header names.
const (
	// HeaderSize is the body length in bytes. Always set by the sender.
	HeaderSize = "Size"

	// HeaderVersion is the protocol version of the session.
	HeaderVersion = "Version"

	// Session metadata. The packet layer stores and retrieves these without
	// interpreting them.
	HeaderFilename     = "Filename"
	HeaderFilesize     = "Filesize"
	HeaderDifferential = "Differential"
	HeaderModified     = "Modified"
	HeaderChecksum     = "Checksum"
)

// ProtocolVersion is the version spoken by this implementation.
const ProtocolVersion = 1

// Limits
const (
	// ReadSize is the size of every read request issued on the stream.
	ReadSize = 4096

	// MaxHeaderBytes bounds the size of a header block.
	MaxHeaderBytes = 64 * 1024
)

// AcceptedVersions is the set of protocol versions a receiver accepts.
var AcceptedVersions = map[int64]bool{
	ProtocolVersion: true,
}
