package testfile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrNoDate is returned when a header carries no usable date element.
var ErrNoDate = errors.New("header has no date")

const (
	dateElement = "date"
	dateLayout  = "20060102"
	dateDigits  = len(dateLayout)
)

const (
	xmlnsPrefix = "xmlns"
	xmlPrefix   = "xml"
	xmlURL      = "http://www.w3.org/XML/1998/namespace"
)

// Header is the run metadata block of a test file. The inner markup is kept
// verbatim so it can be copied into the aggregate document unmodified.
//
// Attrs hold literal attribute names ("xmlns:y", "y:k") with an empty Space,
// so encoding/xml writes them back exactly as they were read.
type Header struct {
	XMLName xml.Name   `xml:"header"`
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// UnmarshalXML decodes a header and restores the literal attribute names that
// namespace translation replaced.
func (h *Header) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	var body struct {
		Inner string `xml:",innerxml"`
	}

	err := dec.DecodeElement(&body, &start)
	if err != nil {
		return err
	}

	h.XMLName = xml.Name{Local: start.Name.Local}
	h.Attrs = literalAttrs(start.Attr)
	h.Inner = body.Inner

	return nil
}

// literalAttrs maps translated attribute names back to prefixed ones, using
// the namespace declarations found on the same element. A namespace URL that
// was declared further up keeps its URL in place of the prefix.
func literalAttrs(attrs []xml.Attr) []xml.Attr {
	if len(attrs) == 0 {
		return nil
	}

	prefixes := make(map[string]string)

	for _, attr := range attrs {
		if attr.Name.Space != xmlnsPrefix {
			continue
		}

		if _, seen := prefixes[attr.Value]; !seen {
			prefixes[attr.Value] = attr.Name.Local
		}
	}

	out := make([]xml.Attr, 0, len(attrs))

	for _, attr := range attrs {
		out = append(out, xml.Attr{Name: xml.Name{Local: literalName(attr.Name, prefixes)}, Value: attr.Value})
	}

	return out
}

func literalName(name xml.Name, prefixes map[string]string) string {
	switch name.Space {
	case "":
		return name.Local
	case xmlnsPrefix:
		return xmlnsPrefix + ":" + name.Local
	case xmlURL:
		return xmlPrefix + ":" + name.Local
	}

	if prefix, ok := prefixes[name.Space]; ok {
		return prefix + ":" + name.Local
	}

	return name.Space + ":" + name.Local
}

// rawAttrs converts attributes read with Decoder.RawToken, whose Space is
// still the prefix, into literal names.
func rawAttrs(attrs []xml.Attr) []xml.Attr {
	if len(attrs) == 0 {
		return nil
	}

	out := make([]xml.Attr, 0, len(attrs))

	for _, attr := range attrs {
		name := attr.Name.Local
		if attr.Name.Space != "" {
			name = attr.Name.Space + ":" + name
		}

		out = append(out, xml.Attr{Name: xml.Name{Local: name}, Value: attr.Value})
	}

	return out
}

// DateText returns the text of the first top-level date element.
func (h Header) DateText() (string, error) {
	dec := xml.NewDecoder(strings.NewReader(h.Inner))
	depth := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", ErrNoDate
		}

		if err != nil {
			return "", fmt.Errorf("scan header: %w", err)
		}

		switch elem := tok.(type) {
		case xml.StartElement:
			if depth == 0 && elem.Name.Local == dateElement {
				var text string

				decodeErr := dec.DecodeElement(&text, &elem)
				if decodeErr != nil {
					return "", fmt.Errorf("decode date: %w", decodeErr)
				}

				return strings.TrimSpace(text), nil
			}

			depth++
		case xml.EndElement:
			depth--
		}
	}
}

// Date parses the header date. Only the leading YYYYMMDD part is used; any
// "-suffix" (run time, build id) is ignored. The result is UTC midnight.
func (h Header) Date() (time.Time, error) {
	text, err := h.DateText()
	if err != nil {
		return time.Time{}, err
	}

	return ParseDate(text)
}

// ParseDate parses a "YYYYMMDD[-suffix]" run date.
func ParseDate(text string) (time.Time, error) {
	day, _, _ := strings.Cut(strings.TrimSpace(text), "-")
	if len(day) < dateDigits {
		return time.Time{}, fmt.Errorf("%w: %q", ErrNoDate, text)
	}

	parsed, err := time.Parse(dateLayout, day[:dateDigits])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", text, err)
	}

	return parsed, nil
}
