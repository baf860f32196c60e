// Package testfile decodes per-run spell-checker test result documents.
//
// A test file has a header section with run metadata (at least a date) and a
// results section holding one word element per spelling attempt:
//
//	<spelltestresult>
//	  <header><date>20130412-1205</date>...</header>
//	  <results>
//	    <word>
//	      <original>teh</original>
//	      <expected>the</expected>
//	      <status>SplErr</status>
//	      <edit_dist>1</edit_dist>
//	      <position>1</position>
//	      <suggestions count="3">...</suggestions>
//	    </word>
//	  </results>
//	</spelltestresult>
package testfile

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrMalformed is returned when a document is not well-formed XML.
var ErrMalformed = errors.New("malformed test file")

// Status is the speller verdict recorded for a word.
type Status int

// Speller verdicts.
const (
	// StatusUnknown covers a missing status element or an unrecognized value.
	StatusUnknown Status = iota
	// StatusSpellError is the speller flagging the word (SplErr).
	StatusSpellError
	// StatusSpellCorrect is the speller accepting the word (SplCor).
	StatusSpellCorrect
)

const headerElement = "header"

const (
	statusSplErr = "SplErr"
	statusSplCor = "SplCor"
)

// ParseStatus maps the raw status text to a Status.
func ParseStatus(raw string) Status {
	switch strings.TrimSpace(raw) {
	case statusSplErr:
		return StatusSpellError
	case statusSplCor:
		return StatusSpellCorrect
	default:
		return StatusUnknown
	}
}

// String returns the raw XML spelling of the status.
func (s Status) String() string {
	switch s {
	case StatusSpellError:
		return statusSplErr
	case StatusSpellCorrect:
		return statusSplCor
	case StatusUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// WordRecord is one spelling attempt taken from a word element.
// Optional numeric fields are nil when the element is absent or unparsable.
type WordRecord struct {
	// EditDistance is the raw edit_dist text; empty when absent.
	EditDistance string
	// BugID is the owning bug in regression runs; empty when absent.
	BugID string

	Position        *int
	SuggestionCount *int

	Status          Status
	ExpectedPresent bool
}

// File is a decoded test file.
type File struct {
	Header     Header
	Words      []WordRecord
	HasHeader  bool
	HasResults bool
}

type presence struct{}

type rawSuggestions struct {
	Count string `xml:"count,attr"`
}

type rawWord struct {
	Expected    *presence       `xml:"expected"`
	Status      *string         `xml:"status"`
	EditDist    *string         `xml:"edit_dist"`
	Position    *string         `xml:"position"`
	Suggestions *rawSuggestions `xml:"suggestions"`
	Bug         *string         `xml:"bug"`
}

type rawResults struct {
	Words []rawWord `xml:"word"`
}

type rawFile struct {
	Header  *Header     `xml:"header"`
	Results *rawResults `xml:"results"`
}

// Decode reads a test file document from r.
func Decode(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read test file: %w", err)
	}

	var raw rawFile

	err = newDecoder(data).Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if raw.Header != nil && len(raw.Header.Attrs) > 0 {
		attrs, attrErr := headerAttrs(data)
		if attrErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, attrErr)
		}

		raw.Header.Attrs = attrs
	}

	file := &File{
		HasHeader:  raw.Header != nil,
		HasResults: raw.Results != nil,
	}

	if raw.Header != nil {
		file.Header = *raw.Header
	}

	if raw.Results != nil {
		file.Words = make([]WordRecord, 0, len(raw.Results.Words))

		for idx := range raw.Results.Words {
			file.Words = append(file.Words, raw.Results.Words[idx].record())
		}
	}

	return file, nil
}

// newDecoder returns a decoder that accepts any encoding declared in the XML
// prolog (ISO-8859-1, windows-1252, UTF-16, ...).
func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	return dec
}

// headerAttrs rereads the header start tag without namespace translation, so
// prefixes declared on the document root survive as written.
func headerAttrs(data []byte) ([]xml.Attr, error) {
	dec := newDecoder(data)
	depth := 0

	for {
		tok, err := dec.RawToken()
		if err != nil {
			return nil, fmt.Errorf("scan header: %w", err)
		}

		switch elem := tok.(type) {
		case xml.StartElement:
			if depth == 1 && elem.Name.Local == headerElement {
				return rawAttrs(elem.Attr), nil
			}

			depth++
		case xml.EndElement:
			depth--
		}
	}
}

// Open decodes the test file stored at path inside fsys.
func Open(fsys fs.FS, path string) (*File, error) {
	fh, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	file, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return file, nil
}

func (w *rawWord) record() WordRecord {
	rec := WordRecord{
		ExpectedPresent: w.Expected != nil,
		Status:          StatusUnknown,
	}

	if w.Status != nil {
		rec.Status = ParseStatus(*w.Status)
	}

	if w.EditDist != nil {
		rec.EditDistance = strings.TrimSpace(*w.EditDist)
	}

	if w.Bug != nil {
		rec.BugID = strings.TrimSpace(*w.Bug)
	}

	if w.Position != nil {
		rec.Position = parseOptionalInt(*w.Position)
	}

	if w.Suggestions != nil {
		rec.SuggestionCount = parseOptionalInt(w.Suggestions.Count)
	}

	return rec
}

func parseOptionalInt(raw string) *int {
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}

	return &val
}
