package model

// Encoding is the declared transfer encoding of an inbound payload.
type Encoding string

const (
	EncodingRaw    Encoding = "raw"
	EncodingBase64 Encoding = "base64-text"
)

// DecompileRequest is a validated payload, created from one request body and consumed once.
// Size is the length of Payload after any decoding.
type DecompileRequest struct {
	Payload  []byte
	Encoding Encoding
	Size     int
}

// Dialect selects which decompiler front-end receives the staged file.
// The zero value runs the decompiler with its default behavior.
type Dialect string

const (
	DialectDefault Dialect = ""
	DialectLuau    Dialect = "luau"
	DialectLua51   Dialect = "lua51"
)

// DecompileOptions carry per-route invocation parameters.
type DecompileOptions struct {
	Dialect   Dialect
	EncodeKey *uint8
}
