// Package persist provides codec-based file persistence for arbitrary state types.
package persist

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// File extensions for supported codecs.
const (
	jsonExtension = ".json"
	xmlExtension  = ".xml"
	lz4Extension  = ".lz4"
)

// Default indentation for pretty-printed output.
const defaultIndent = "  "

// Codec defines how state is serialized and deserialized.
type Codec interface {
	// Encode writes the state to the writer.
	Encode(w io.Writer, state any) error
	// Decode reads the state from the reader.
	Decode(r io.Reader, state any) error
	// Extension returns the file extension for this codec (e.g., ".json", ".xml").
	Extension() string
}

// JSONCodec implements Codec using JSON encoding with optional indentation.
type JSONCodec struct {
	// Indent specifies the indentation string. Empty string means compact JSON.
	Indent string
}

// NewJSONCodec creates a JSON codec with pretty-printing (2-space indent).
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultIndent}
}

// Encode implements Codec.Encode using JSON encoding.
func (c *JSONCodec) Encode(w io.Writer, state any) error {
	encoder := json.NewEncoder(w)
	if c.Indent != "" {
		encoder.SetIndent("", c.Indent)
	}

	err := encoder.Encode(state)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using JSON decoding.
func (c *JSONCodec) Decode(r io.Reader, state any) error {
	err := json.NewDecoder(r).Decode(state)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for JSON files.
func (c *JSONCodec) Extension() string {
	return jsonExtension
}

// XMLCodec implements Codec using XML encoding. Output starts with the
// standard XML declaration.
type XMLCodec struct {
	// Indent specifies the indentation string. Empty string means compact XML.
	Indent string
}

// NewXMLCodec creates an XML codec with pretty-printing (2-space indent).
func NewXMLCodec() *XMLCodec {
	return &XMLCodec{Indent: defaultIndent}
}

// Encode implements Codec.Encode using XML encoding.
func (c *XMLCodec) Encode(w io.Writer, state any) error {
	_, err := io.WriteString(w, xml.Header)
	if err != nil {
		return fmt.Errorf("xml header: %w", err)
	}

	encoder := xml.NewEncoder(w)
	if c.Indent != "" {
		encoder.Indent("", c.Indent)
	}

	err = encoder.Encode(state)
	if err != nil {
		return fmt.Errorf("xml encode: %w", err)
	}

	_, err = io.WriteString(w, "\n")
	if err != nil {
		return fmt.Errorf("xml trailer: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using XML decoding.
func (c *XMLCodec) Decode(r io.Reader, state any) error {
	err := xml.NewDecoder(r).Decode(state)
	if err != nil {
		return fmt.Errorf("xml decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for XML files.
func (c *XMLCodec) Extension() string {
	return xmlExtension
}

// LZ4Codec wraps another codec in an LZ4 frame stream.
type LZ4Codec struct {
	Inner Codec
}

// NewLZ4Codec creates a compressing wrapper around inner.
func NewLZ4Codec(inner Codec) *LZ4Codec {
	return &LZ4Codec{Inner: inner}
}

// Encode implements Codec.Encode by compressing the inner encoding.
func (c *LZ4Codec) Encode(w io.Writer, state any) error {
	zw := lz4.NewWriter(w)

	err := c.Inner.Encode(zw, state)
	if err != nil {
		return err
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("lz4 close: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode by decompressing before the inner decode.
func (c *LZ4Codec) Decode(r io.Reader, state any) error {
	return c.Inner.Decode(lz4.NewReader(r), state)
}

// Extension implements Codec.Extension, appending ".lz4" to the inner extension.
func (c *LZ4Codec) Extension() string {
	return c.Inner.Extension() + lz4Extension
}
