package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/wandb/simplejsonext"
)

// SDKInfo identifies the SDK in envelope headers and auth headers.
type SDKInfo struct {
	Name    string
	Version string
}

func (s SDKInfo) ClientName() string {
	return s.Name + "/" + s.Version
}

// Envelope bundles one or more items for a single HTTP exchange.
//
// The wire format is newline-delimited JSON: a header line identifying
// the DSN and SDK, then one line per item carrying the item's type,
// its record count and its payload.
type Envelope struct {
	DSN    string
	SDK    SDKInfo
	SentAt time.Time
	Items  []Item
}

// ItemCount is the total number of telemetry records in the envelope.
//
// Send queue capacity and discard accounting are measured in records,
// so a log batch contributes the number of records it wraps.
func (e *Envelope) ItemCount() int {
	total := 0
	for _, item := range e.Items {
		total += item.ItemCount()
	}
	return total
}

// Categories returns the distinct item categories in the envelope, in
// order of first appearance.
func (e *Envelope) Categories() []Category {
	seen := make(map[Category]bool)
	var categories []Category
	for _, item := range e.Items {
		if !seen[item.Category()] {
			seen[item.Category()] = true
			categories = append(categories, item.Category())
		}
	}
	return categories
}

// Serialize writes the envelope in wire format.
func (e *Envelope) Serialize(w io.Writer) error {
	header := map[string]any{
		"dsn": e.DSN,
		"sdk": map[string]any{
			"name":    e.SDK.Name,
			"version": e.SDK.Version,
		},
		"sent_at": e.SentAt.UTC().Format(time.RFC3339Nano),
	}

	if err := writeJSONLine(w, header); err != nil {
		return fmt.Errorf("protocol: failed to write envelope header: %v", err)
	}

	for _, item := range e.Items {
		line := map[string]any{
			"type":       item.EnvelopeType(),
			"item_count": item.ItemCount(),
			"payload":    item.Payload(),
		}

		if err := writeJSONLine(w, line); err != nil {
			return fmt.Errorf("protocol: failed to write %s item: %v",
				item.EnvelopeType(), err)
		}
	}

	return nil
}

// SerializeCompressed writes the envelope in wire format behind gzip.
func (e *Envelope) SerializeCompressed(w io.Writer) error {
	zw := gzip.NewWriter(w)

	if err := e.Serialize(zw); err != nil {
		_ = zw.Close()
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("protocol: failed to compress envelope: %v", err)
	}

	return nil
}

func writeJSONLine(w io.Writer, value any) error {
	data, err := simplejsonext.Marshal(value)
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte{'\n'})
	return err
}

// RawItem is one parsed envelope item line.
type RawItem struct {
	Type      string
	ItemCount int
	Payload   map[string]any
}

// RawEnvelope is the parsed form of a serialized envelope.
//
// Used on the receiving side (the mock ingest endpoint and tests);
// the SDK itself only ever serializes.
type RawEnvelope struct {
	Header map[string]any
	Items  []RawItem
}

// ItemCount is the total number of records declared by the item lines.
func (e *RawEnvelope) ItemCount() int {
	total := 0
	for _, item := range e.Items {
		total += item.ItemCount
	}
	return total
}

// ParseEnvelope reads an uncompressed envelope in wire format.
func ParseEnvelope(r io.Reader) (*RawEnvelope, error) {
	reader := bufio.NewReader(r)

	headerLine, err := readLine(reader)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to read envelope header: %v", err)
	}

	header, err := simplejsonext.UnmarshalObjectString(headerLine)
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid envelope header: %v", err)
	}

	envelope := &RawEnvelope{Header: header}

	for {
		line, err := readLine(reader)
		switch {
		case errors.Is(err, io.EOF) && line == "":
			return envelope, nil
		case err != nil && !errors.Is(err, io.EOF):
			return nil, fmt.Errorf("protocol: failed to read envelope item: %v", err)
		}

		item, parseErr := parseItemLine(line)
		if parseErr != nil {
			return nil, parseErr
		}
		envelope.Items = append(envelope.Items, item)

		if errors.Is(err, io.EOF) {
			return envelope, nil
		}
	}
}

// ParseCompressedEnvelope reads a gzip-compressed envelope.
func ParseCompressedEnvelope(r io.Reader) (*RawEnvelope, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to decompress envelope: %v", err)
	}
	defer func() { _ = zr.Close() }()

	return ParseEnvelope(zr)
}

func parseItemLine(line string) (RawItem, error) {
	object, err := simplejsonext.UnmarshalObjectString(line)
	if err != nil {
		return RawItem{}, fmt.Errorf("protocol: invalid envelope item: %v", err)
	}

	item := RawItem{ItemCount: 1}

	if itemType, ok := object["type"].(string); ok {
		item.Type = itemType
	}
	if count, ok := toInt(object["item_count"]); ok {
		item.ItemCount = count
	}
	if payload, ok := object["payload"].(map[string]any); ok {
		item.Payload = payload
	}

	return item, nil
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	return strings.TrimSuffix(line, "\n"), err
}
