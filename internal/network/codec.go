package network

import (
	"bufio"
	"io"
)

// ReadLine reads one line from r with the terminator removed.
// A final unterminated line before EOF is returned without error; the next call returns io.EOF.
func ReadLine(r *bufio.Reader) (string, error) {
	raw, err := r.ReadString(LineDelimiter)
	if err != nil {
		if err == io.EOF && raw != "" {
			return TrimLine(raw), nil
		}
		return "", err
	}
	return TrimLine(raw), nil
}

// WriteLine writes line followed by the delimiter.
func WriteLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+string(LineDelimiter))
	return err
}
