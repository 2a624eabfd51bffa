// Package importer parses message dumps into domain messages. Parsing is all
// or nothing: a malformed payload yields an error and no messages.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"smsfilter/core/domain"
	"smsfilter/pkg/apperr"

	"github.com/goccy/go-json"
)

// CSVTimeLayout is the timestamp layout of the CSV format.
const CSVTimeLayout = "2006-01-02 15:04:05"

// leading whitespace and byte order mark
const cutset = " \t\r\n\ufeff"

// Format names accepted by Parse.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Importer converts CSV and JSON dumps into messages. Imported messages carry
// no ID; the message service assigns one on merge.
type Importer struct {
	now func() time.Time
	loc *time.Location
}

// New creates an importer that reads CSV timestamps in loc (time.Local when nil).
func New(loc *time.Location) *Importer {
	if loc == nil {
		loc = time.Local
	}
	return &Importer{now: time.Now, loc: loc}
}

// Parse dispatches on format. An empty format is detected from the payload.
func (im *Importer) Parse(format string, data []byte) ([]domain.Message, error) {
	if format == "" {
		format = DetectFormat(data)
	}
	switch strings.ToLower(format) {
	case FormatCSV:
		return im.ParseCSV(bytes.NewReader(data))
	case FormatJSON:
		return im.ParseJSON(data)
	default:
		return nil, apperr.InvalidInput("format", fmt.Sprintf("unsupported import format %q", format))
	}
}

// DetectFormat guesses json when the payload starts with '[' or '{'.
func DetectFormat(data []byte) string {
	trimmed := bytes.TrimLeft(data, cutset)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatCSV
}

// =============================================================================
// CSV
// =============================================================================

// ParseCSV reads sender,content,timestamp rows. A first row mentioning
// "sender" is a header. Rows with fewer than three fields are skipped;
// unparsable timestamps become the import time.
func (im *Importer) ParseCSV(r io.Reader) ([]domain.Message, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, apperr.ImportFailed(FormatCSV, err)
	}

	if len(records) > 0 && strings.Contains(strings.Join(records[0], ","), "sender") {
		records = records[1:]
	}

	messages := make([]domain.Message, 0, len(records))
	for _, rec := range records {
		if len(rec) < 3 {
			continue
		}
		messages = append(messages, domain.Message{
			Sender:    strings.TrimSpace(rec[0]),
			Content:   strings.TrimSpace(rec[1]),
			Timestamp: im.parseCSVTime(strings.TrimSpace(rec[2])),
		})
	}
	return messages, nil
}

func (im *Importer) parseCSVTime(s string) time.Time {
	if ts, err := time.ParseInLocation(CSVTimeLayout, s, im.loc); err == nil {
		return ts
	}
	return im.now()
}

// =============================================================================
// JSON
// =============================================================================

type jsonMessage struct {
	Sender              string  `json:"sender"`
	Content             string  `json:"content"`
	Timestamp           *string `json:"timestamp"`
	Signature           string  `json:"signature"`
	Category            string  `json:"category"`
	AISuggestedCategory string  `json:"aiSuggestedCategory"`
}

type jsonEnvelope struct {
	Messages []jsonMessage `json:"messages"`
}

var errNoMessages = errors.New(`expected an array or an object with a "messages" array`)

// ParseJSON accepts a bare array of messages or {"messages": [...]}.
// Entries without sender or content are skipped; timestamps are RFC 3339 and
// default to the import time.
func (im *Importer) ParseJSON(data []byte) ([]domain.Message, error) {
	var raw []jsonMessage
	switch DetectFormat(data) {
	case FormatJSON:
		trimmed := bytes.TrimLeft(data, cutset)
		if trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &raw); err != nil {
				return nil, apperr.ImportFailed(FormatJSON, err)
			}
			break
		}
		var env jsonEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, apperr.ImportFailed(FormatJSON, err)
		}
		if env.Messages == nil {
			return nil, apperr.ImportFailed(FormatJSON, errNoMessages)
		}
		raw = env.Messages
	default:
		return nil, apperr.ImportFailed(FormatJSON, errNoMessages)
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, jm := range raw {
		if jm.Sender == "" || jm.Content == "" {
			continue
		}
		m := domain.Message{
			Sender:    jm.Sender,
			Content:   jm.Content,
			Timestamp: im.parseJSONTime(jm.Timestamp),
			Signature: jm.Signature,
		}
		if c, ok := domain.ParseCategory(jm.Category); ok {
			m.Category = domain.CategoryPtr(c)
		}
		if c, ok := domain.ParseCategory(jm.AISuggestedCategory); ok {
			m.AISuggestedCategory = domain.CategoryPtr(c)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (im *Importer) parseJSONTime(s *string) time.Time {
	if s == nil {
		return im.now()
	}
	if ts, err := time.Parse(time.RFC3339, *s); err == nil {
		return ts
	}
	return im.now()
}

// =============================================================================
// Templates
// =============================================================================

// CSVTemplate is a sample file for the CSV format.
const CSVTemplate = `sender,content,timestamp
10086,【中国移动】您的验证码是123456，5分钟内有效，请勿泄露。,2024-01-01 12:00:00
95588,【工商银行】您尾号1234的银行卡于12:30消费100.00元，余额5000.00元。,2024-01-01 13:30:00
`

// JSONTemplate is a sample file for the JSON format.
const JSONTemplate = `{
  "messages": [
    {
      "sender": "10086",
      "content": "【中国移动】您的验证码是123456，5分钟内有效，请勿泄露。",
      "timestamp": "2024-01-01T12:00:00Z"
    },
    {
      "sender": "95588",
      "content": "【工商银行】您尾号1234的银行卡于12:30消费100.00元，余额5000.00元。",
      "timestamp": "2024-01-01T13:30:00Z"
    }
  ]
}
`

// Template returns the sample file for format.
func Template(format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return CSVTemplate, nil
	case FormatJSON:
		return JSONTemplate, nil
	default:
		return "", apperr.InvalidInput("format", fmt.Sprintf("unsupported import format %q", format))
	}
}
