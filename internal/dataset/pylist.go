package dataset

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TestList is a list of test identifiers as stored in the dataset CSV.
// The dataset serializes these columns as Python list literals
// (e.g. ['test_a', "test_b"]). This type decodes that shape without
// executing anything.
type TestList []string

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (l *TestList) UnmarshalCSV(value string) error {
	items, err := parsePyList(value)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller, writing the value back in
// the same single-quoted literal form the dataset ships with.
func (l TestList) MarshalCSV() (string, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range l {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		b.WriteString(escapePyString(item))
		b.WriteByte('\'')
	}
	b.WriteByte(']')
	return b.String(), nil
}

// UnmarshalJSON accepts either a JSON array (JSONL datasets) or a string
// holding a Python list literal (datasets exported column-for-column).
func (l *TestList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("test list is neither array nor string: %s", data)
	}
	items, err := parsePyList(s)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

// MarshalJSON always emits a plain JSON array.
func (l TestList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func escapePyString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}

// parsePyList decodes a Python list-of-strings literal. Both quote styles
// and backslash escapes are accepted. Empty input and "[]" decode to nil.
func parsePyList(value string) ([]string, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("not a list literal: %q", value)
	}
	s = s[1 : len(s)-1]

	var items []string
	i := 0
	for {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == ',') {
			i++
		}
		if i >= len(s) {
			return items, nil
		}
		quote := s[i]
		if quote != '\'' && quote != '"' {
			return nil, fmt.Errorf("expected quoted string at offset %d in %q", i, value)
		}
		i++
		var b strings.Builder
		for {
			if i >= len(s) {
				return nil, fmt.Errorf("unterminated string in %q", value)
			}
			c := s[i]
			if c == '\\' {
				if i+1 >= len(s) {
					return nil, fmt.Errorf("trailing escape in %q", value)
				}
				i++
				switch s[i] {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				case 'r':
					b.WriteByte('\r')
				default:
					b.WriteByte(s[i])
				}
				i++
				continue
			}
			if c == quote {
				i++
				break
			}
			b.WriteByte(c)
			i++
		}
		items = append(items, b.String())
	}
}
