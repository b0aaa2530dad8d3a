package core

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/mastr-ingest/internal/logging"
)

// DefaultMaxRepairs bounds the XML repair loop per partition.
const DefaultMaxRepairs = 100

// Transformer turns one partition payload into a RowBatch.
type Transformer struct {
	MaxRepairs   int       // Repair attempts before a partition is declared corrupt
	SourceTag    string    // DatenQuelle value
	DownloadDate time.Time // DatumDownload value
	Cleanser     *Cleanser // Nil disables cleansing
}

// NewTransformer returns a Transformer with default limits.
func NewTransformer(sourceTag string, downloadDate time.Time, cleanser *Cleanser) *Transformer {
	return &Transformer{
		MaxRepairs:   DefaultMaxRepairs,
		SourceTag:    sourceTag,
		DownloadDate: downloadDate,
		Cleanser:     cleanser,
	}
}

// TransformStats reports what the transformer changed.
type TransformStats struct {
	Repairs     int // Fragments excised from malformed XML
	CodesPadded int
	DatesNulled int
	ValuesClean int // Values changed by cleansing
}

// Transform decodes, parses and normalizes one partition.
func (t *Transformer) Transform(ctx context.Context, p Partition, r io.Reader) (*RowBatch, TransformStats, error) {
	var stats TransformStats

	et, ok := Get(p.EntityType)
	if !ok {
		return nil, stats, fmt.Errorf("transform %s: unknown entity type %q", p.Name, p.EntityType)
	}

	data, err := DecodePayload(r)
	if err != nil {
		return nil, stats, fmt.Errorf("transform %s: decode: %w: %w", p.Name, ErrCorruptPartition, err)
	}

	doc, repairs, err := parseWithRepair(data, t.MaxRepairs)
	stats.Repairs = repairs
	if repairs > 0 {
		logging.WithFields(ctx, "partition", p.Name).Warn("invalid xml expressions deleted", "count", repairs)
	}
	if err != nil {
		return nil, stats, fmt.Errorf("transform %s: %w", p.Name, err)
	}

	batch := &RowBatch{
		EntityType: et.Key,
		Table:      et.Table,
		Columns:    doc.columns,
		Rows:       doc.rows,
	}

	stats.CodesPadded = padCodes(batch)
	renameColumns(batch, et.Renames)
	stats.DatesNulled = coerceDates(batch, et)
	t.attachProvenance(batch)

	if t.Cleanser != nil {
		stats.ValuesClean = t.Cleanser.Apply(et, batch)
	}

	return batch, stats, nil
}

// document is the row-oriented content of a parsed partition.
type document struct {
	columns []string
	index   map[string]int
	rows    [][]*string
}

func (d *document) column(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	d.index[name] = len(d.columns)
	d.columns = append(d.columns, name)
	return len(d.columns) - 1
}

// syntaxError carries the byte offset at which the decoder gave up.
type syntaxError struct {
	offset int64
	err    error
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("xml syntax error at byte %d: %v", e.offset, e.err)
}

func (e *syntaxError) Unwrap() error { return e.err }

// parseDocument reads <Root><Row><Field>value</Field>...</Row>...</Root>.
// Empty fields are nil; rows are padded to the final column count.
func parseDocument(data []byte) (*document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	// Payload is already UTF-8; the prolog still declares the original encoding.
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	doc := &document{index: make(map[string]int)}
	var (
		depth int
		row   []*string
		field string
		text  bytes.Buffer
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &syntaxError{offset: dec.InputOffset(), err: err}
		}

		switch tok := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 2:
				row = make([]*string, len(doc.columns))
			case 3:
				field = tok.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 3 {
				text.Write(tok)
			}
		case xml.EndElement:
			switch depth {
			case 3:
				i := doc.column(field)
				for len(row) <= i {
					row = append(row, nil)
				}
				if text.Len() > 0 {
					v := text.String()
					row[i] = &v
				}
			case 2:
				doc.rows = append(doc.rows, row)
			}
			depth--
		}
	}

	if depth != 0 {
		return nil, &syntaxError{offset: int64(len(data)), err: errors.New("unexpected end of document")}
	}

	for i, r := range doc.rows {
		for len(r) < len(doc.columns) {
			r = append(r, nil)
		}
		doc.rows[i] = r
	}
	return doc, nil
}

// parseWithRepair parses data, excising the fragment around each syntax error
// until the document parses or maxRepairs excisions were made.
func parseWithRepair(data []byte, maxRepairs int) (*document, int, error) {
	repairs := 0
	for {
		doc, err := parseDocument(data)
		if err == nil {
			return doc, repairs, nil
		}

		var se *syntaxError
		if !errors.As(err, &se) || repairs >= maxRepairs {
			return nil, repairs, fmt.Errorf("%w: %v", ErrCorruptPartition, err)
		}

		repaired, ok := excise(data, int(se.offset))
		if !ok {
			return nil, repairs, fmt.Errorf("%w: %v", ErrCorruptPartition, err)
		}
		data = repaired
		repairs++
	}
}

// excise removes the text between the last '>' before pos and the first '<'
// after it. Returns false when there is nothing to remove.
func excise(data []byte, pos int) ([]byte, bool) {
	if pos > len(data) {
		pos = len(data)
	}
	left := bytes.LastIndexByte(data[:pos], '>')
	right := bytes.IndexByte(data[pos:], '<')
	if left < 0 || right < 0 {
		return nil, false
	}
	right += pos
	if right <= left+1 {
		return nil, false
	}

	out := make([]byte, 0, len(data)-(right-left-1))
	out = append(out, data[:left+1]...)
	out = append(out, data[right:]...)
	return out, true
}

// padCodes applies PadCodeColumn to every administrative code column present.
func padCodes(b *RowBatch) int {
	total := 0
	for name, width := range CodeWidths {
		i := b.ColumnIndex(name)
		if i < 0 {
			continue
		}
		col := make([]*string, len(b.Rows))
		for r, row := range b.Rows {
			col[r] = row[i]
		}
		total += PadCodeColumn(col, width)
		for r, row := range b.Rows {
			row[i] = col[r]
		}
	}
	return total
}

func renameColumns(b *RowBatch, renames map[string]string) {
	if len(renames) == 0 {
		return
	}
	for i, c := range b.Columns {
		if to, ok := renames[c]; ok {
			b.Columns[i] = to
		}
	}
}

// coerceDates normalizes declared date and timestamp columns.
// Unparseable values become nil. Returns the number nulled.
func coerceDates(b *RowBatch, et EntityType) int {
	nulled := 0
	for i, name := range b.Columns {
		spec, ok := et.Column(name)
		if !ok || (spec.Type != ColumnDate && spec.Type != ColumnTimestamp) {
			continue
		}
		for _, row := range b.Rows {
			v := row[i]
			if v == nil {
				continue
			}
			s, ok := CoerceDate(*v, spec.Type)
			if !ok {
				row[i] = nil
				nulled++
				continue
			}
			row[i] = &s
		}
	}
	return nulled
}

func (t *Transformer) attachProvenance(b *RowBatch) {
	source := t.SourceTag
	date := DownloadDate(t.DownloadDate)
	setConstant(b, ColumnSource, source)
	setConstant(b, ColumnDownloadDate, date)
}

// setConstant sets column name to v on every row, adding the column if needed.
func setConstant(b *RowBatch, name, v string) {
	i := b.ColumnIndex(name)
	if i < 0 {
		b.Columns = append(b.Columns, name)
		for r := range b.Rows {
			b.Rows[r] = append(b.Rows[r], &v)
		}
		return
	}
	for _, row := range b.Rows {
		row[i] = &v
	}
}
