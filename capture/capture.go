// Package capture records received frames as a stream of CBOR items so a
// listening session can be replayed or inspected later.
package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/NV4RE/gnrf"
)

// Record is one received frame.
type Record struct {
	_ struct{} `cbor:",toarray"`
	// Time is when the frame was drained, in Unix nanoseconds.
	Time   int64
	Pipe   int
	Status byte
	Data   []byte
}

// NewRecord captures p as received at t.
func NewRecord(t time.Time, p *gnrf.Payload) Record {
	return Record{
		Time:   t.UnixNano(),
		Pipe:   p.Pipe(),
		Status: byte(p.Status),
		Data:   append([]byte(nil), p.Bytes()...),
	}
}

// Received returns the receive time of r.
func (r Record) Received() time.Time {
	return time.Unix(0, r.Time)
}

// Payload rebuilds the frame as the driver returned it.
func (r Record) Payload() *gnrf.Payload {
	p := &gnrf.Payload{Len: len(r.Data), Status: gnrf.Status(r.Status)}
	copy(p.Data[:], r.Data)
	if p.Len > gnrf.MaxPayloadSize {
		p.Len = gnrf.MaxPayloadSize
	}
	return p
}

// Sink receives captured records.
type Sink interface {
	Write(r Record) error
}

// Writer appends records to an underlying stream.
type Writer struct {
	enc *cbor.Encoder
}

func NewWriter(w io.Writer) (*Writer, error) {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("capture: failed to initialize encoder: %w", err)
	}
	return &Writer{enc: mode.NewEncoder(w)}, nil
}

func (w *Writer) Write(r Record) error {
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("capture: failed to encode record: %w", err)
	}
	return nil
}

// Reader reads records written by Writer.
type Reader struct {
	dec *cbor.Decoder
	src *countingReader
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func NewReader(r io.Reader) (*Reader, error) {
	mode, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("capture: failed to initialize decoder: %w", err)
	}
	src := &countingReader{r: r}
	return &Reader{dec: mode.NewDecoder(src), src: src}, nil
}

// Read returns the next record, or io.EOF at the end of the stream. A
// stream that ends inside a record yields io.ErrUnexpectedEOF.
func (r *Reader) Read() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// Bytes taken from the stream but never decoded are a cut off record.
			if r.src.n > r.dec.NumBytesRead() {
				return Record{}, fmt.Errorf("capture: truncated record: %w", io.ErrUnexpectedEOF)
			}
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("capture: failed to decode record: %w", err)
	}
	return rec, nil
}

// ReadAll reads records until the end of the stream.
func (r *Reader) ReadAll() ([]Record, error) {
	var recs []Record
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}
