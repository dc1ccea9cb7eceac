package network

import (
	"strings"
	"unicode"
)

// Wire format: UTF-8 text, one message per '\n'-terminated line.
// A trailing '\r' is tolerated and stripped.
const (
	LineDelimiter = '\n'

	// AckPrefix starts every server reply. The full reply is AckPrefix + line + "\n".
	AckPrefix = "Server received: "

	// ConfirmToken is what the scripted client sends after each corner.
	// The server accepts any text as a confirmation.
	ConfirmToken = "ok"
)

// FormatAck builds the reply written back for a received line.
func FormatAck(line string) string {
	return AckPrefix + line + "\n"
}

// ParseAck returns the echoed line from a reply, and whether the reply had the expected prefix.
func ParseAck(reply string) (string, bool) {
	reply = TrimLine(reply)
	if !strings.HasPrefix(reply, AckPrefix) {
		return reply, false
	}
	return strings.TrimPrefix(reply, AckPrefix), true
}

// TrimLine drops the line terminator ("\n" or "\r\n") from a raw line.
func TrimLine(raw string) string {
	raw = strings.TrimSuffix(raw, "\n")
	return strings.TrimSuffix(raw, "\r")
}

// TrimCorner strips brackets and whitespace from both ends of a corner token,
// so "[2]", " 2 " and "\t2" all read as 2.
func TrimCorner(token string) string {
	return strings.TrimFunc(token, func(r rune) bool {
		return r == '[' || r == ']' || unicode.IsSpace(r)
	})
}

// CalibrationScript is the corner/confirmation sequence a client sends to finish the handshake.
// The fifth corner is the one that completes it.
func CalibrationScript() []string {
	script := make([]string, 0, 10)
	for _, corner := range []string{"1", "2", "3", "4", "5"} {
		script = append(script, corner, ConfirmToken)
	}
	return script
}
