package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

// The file and S3 stores share one JSON document mapping database IDs to
// ISO-8601 timestamps:
//
//	{"<database id>": "2024-01-15T10:30:00.000Z"}

func decodeDocument(r io.Reader) (map[string]time.Time, error) {
	var raw map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return make(map[string]time.Time), nil
		}
		return nil, fmt.Errorf("decoding checkpoints: %w", err)
	}

	doc := make(map[string]time.Time, len(raw))
	for id, s := range raw {
		t, err := n2s.ParseTimestamp(s)
		if err != nil {
			return nil, fmt.Errorf("parsing checkpoint for %s: %w", id, err)
		}
		doc[id] = t
	}
	return doc, nil
}

func encodeDocument(w io.Writer, doc map[string]time.Time) error {
	raw := make(map[string]string, len(doc))
	for id, t := range doc {
		raw[id] = n2s.FormatTimestamp(t)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("encoding checkpoints: %w", err)
	}
	return nil
}
