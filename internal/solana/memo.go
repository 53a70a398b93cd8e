package solana

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mr-tron/base58"
)

// Memo program IDs recognized when scanning instruction lists. Both the
// legacy and the current program are in active use on mainnet.
const (
	MemoProgramV1 = "Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo"
	MemoProgramV2 = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
)

// AttributionPrefix is the literal memo prefix carrying a project attribution
// hint: "MEMOCRACY:<projectId>".
const AttributionPrefix = "MEMOCRACY:"

// ErrInvalidMemo is returned when memo bytes do not decode to valid UTF-8 text
var ErrInvalidMemo = errors.New("memo payload is not valid UTF-8 text")

type memoEncoding uint8

const (
	memoRaw memoEncoding = iota
	memoBytes
	memoBase58
	memoBase64
)

// MemoPayload normalizes the heterogeneous encodings memo instruction data
// arrives in. Construct with one of the MemoFrom functions, then call Text.
type MemoPayload struct {
	encoding memoEncoding
	text     string
	bytes    []byte
}

// MemoFromRaw wraps already-decoded memo text
func MemoFromRaw(text string) MemoPayload {
	return MemoPayload{encoding: memoRaw, text: text}
}

// MemoFromBytes wraps raw memo instruction bytes
func MemoFromBytes(data []byte) MemoPayload {
	return MemoPayload{encoding: memoBytes, bytes: data}
}

// MemoFromBase58 wraps base58-encoded instruction data, the encoding the RPC
// node uses for instructions it cannot parse.
func MemoFromBase58(data string) MemoPayload {
	return MemoPayload{encoding: memoBase58, text: data}
}

// MemoFromBase64 wraps base64-encoded instruction data
func MemoFromBase64(data string) MemoPayload {
	return MemoPayload{encoding: memoBase64, text: data}
}

// Text decodes the payload to trimmed UTF-8 text
func (p MemoPayload) Text() (string, error) {
	var raw []byte

	switch p.encoding {
	case memoRaw:
		raw = []byte(p.text)
	case memoBytes:
		raw = p.bytes
	case memoBase58:
		decoded, err := base58.Decode(p.text)
		if err != nil {
			return "", fmt.Errorf("failed to decode base58 memo data: %w", err)
		}
		raw = decoded
	case memoBase64:
		decoded, err := base64.StdEncoding.DecodeString(p.text)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 memo data: %w", err)
		}
		raw = decoded
	}

	if !utf8.Valid(raw) {
		return "", ErrInvalidMemo
	}

	return strings.TrimSpace(string(raw)), nil
}

// IsMemoProgram reports whether a program ID is one of the memo programs
func IsMemoProgram(programID string) bool {
	return programID == MemoProgramV1 || programID == MemoProgramV2
}

// ExtractProjectID extracts the project attribution hint from memo text.
// Returns false unless the memo matches "MEMOCRACY:<id>" with a non-empty id.
func ExtractProjectID(memo string) (string, bool) {
	if len(memo) <= len(AttributionPrefix) {
		return "", false
	}
	if !strings.HasPrefix(memo, AttributionPrefix) {
		return "", false
	}
	id := memo[len(AttributionPrefix):]
	if id == "" {
		return "", false
	}
	return id, true
}

// memoTextFromParsed handles the jsonParsed shape of a memo instruction,
// where the node has already decoded the payload to a JSON string.
func memoTextFromParsed(parsed json.RawMessage) (string, bool) {
	var text string
	if err := json.Unmarshal(parsed, &text); err != nil {
		return "", false
	}
	return strings.TrimSpace(text), true
}
