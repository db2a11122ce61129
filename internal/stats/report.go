package stats

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// ReportType is the discriminator of an ack report.
const ReportType = "acks"

// Errors
var (
	ErrNotAckReport    = errors.New("not an ack report")
	ErrMalformedReport = errors.New("malformed ack report")
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Ack is the count for one distinct payload digest.
type Ack struct {
	Digest string
	Count  uint64
}

// EncodeReport serializes acks, in the order given, as an ack report.
func EncodeReport(acks []Ack) ([]byte, error) {
	stream := jsonAPI.BorrowStream(nil)
	defer jsonAPI.ReturnStream(stream)

	stream.WriteObjectStart()
	stream.WriteObjectField("type")
	stream.WriteString(ReportType)
	stream.WriteMore()
	stream.WriteObjectField("messages")
	stream.WriteArrayStart()
	for i, a := range acks {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectStart()
		stream.WriteObjectField(a.Digest)
		stream.WriteUint64(a.Count)
		stream.WriteObjectEnd()
	}
	stream.WriteArrayEnd()
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, fmt.Errorf("encode ack report: %w", stream.Error)
	}

	out := make([]byte, stream.Buffered())
	copy(out, stream.Buffer())
	return out, nil
}

// DecodeReport parses an ack report, preserving entry order.
func DecodeReport(data []byte) ([]Ack, error) {
	var raw struct {
		Type     string              `json:"type"`
		Messages []map[string]uint64 `json:"messages"`
	}
	if err := jsonAPI.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if raw.Type != ReportType {
		return nil, fmt.Errorf("%w: type %q", ErrNotAckReport, raw.Type)
	}

	acks := make([]Ack, 0, len(raw.Messages))
	for i, entry := range raw.Messages {
		if len(entry) != 1 {
			return nil, fmt.Errorf("%w: entry %d has %d keys", ErrMalformedReport, i, len(entry))
		}
		for digest, count := range entry {
			acks = append(acks, Ack{Digest: digest, Count: count})
		}
	}
	return acks, nil
}
