package records

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// EncodeLine marshals a URLRecord as one line of UTF-8 JSON with non-ASCII
// preserved (no HTML escaping), terminated by a newline.
func EncodeLine(record URLRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeLines reads line-delimited URLRecords from r. Unknown fields are
// ignored so newer writers stay readable; blank lines are skipped, and a
// malformed line aborts with the offending error.
func DecodeLines(r io.Reader) ([]URLRecord, error) {
	var out []URLRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record URLRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
