package core

import (
	"fmt"
	"io"
	"strings"
)

// Catalog maps Katalogwerte ids to their display values.
type Catalog map[string]string

// ParseCatalog reads a Katalogwerte partition (rows with Id and Wert fields).
func ParseCatalog(r io.Reader) (Catalog, error) {
	data, err := DecodePayload(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	doc, _, err := parseWithRepair(data, DefaultMaxRepairs)
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	idCol, valCol := -1, -1
	for i, c := range doc.columns {
		switch c {
		case "Id":
			idCol = i
		case "Wert":
			valCol = i
		}
	}
	if idCol < 0 || valCol < 0 {
		return nil, fmt.Errorf("parse catalog: missing Id or Wert column")
	}

	cat := make(Catalog, len(doc.rows))
	for _, row := range doc.rows {
		id, val := row[idCol], row[valCol]
		if id == nil || val == nil {
			continue
		}
		cat[strings.TrimSpace(*id)] = *val
	}
	return cat, nil
}

// Cleanser applies value-level cleansing rules to transformed batches.
type Cleanser struct {
	catalog Catalog
}

// NewCleanser returns a Cleanser. A nil catalog disables catalog replacement.
func NewCleanser(catalog Catalog) *Cleanser {
	return &Cleanser{catalog: catalog}
}

// Apply cleanses b in place and returns the number of values changed.
//
// Every value is trimmed and blanks become nil. Declared double columns get
// German decimal notation rewritten, catalog columns get ids replaced by their
// display value, and column normalizers run last.
func (c *Cleanser) Apply(et EntityType, b *RowBatch) int {
	changed := 0
	for i, name := range b.Columns {
		spec, declared := et.Column(name)
		for _, row := range b.Rows {
			v := row[i]
			if v == nil {
				continue
			}
			s := strings.TrimSpace(*v)
			if s == "" {
				row[i] = nil
				changed++
				continue
			}
			if declared {
				if spec.Type == ColumnDouble {
					s = NormalizeDecimal(s)
				}
				if spec.Catalog {
					s = c.resolve(s)
				}
				if spec.Normalizer != nil {
					s = spec.Normalizer(s)
				}
			}
			if s != *v {
				row[i] = &s
				changed++
			}
		}
	}
	return changed
}

// resolve replaces a single id or a comma-separated id list. Unknown ids are kept.
func (c *Cleanser) resolve(s string) string {
	if len(c.catalog) == 0 {
		return s
	}
	if !strings.Contains(s, ",") {
		if v, ok := c.catalog[s]; ok {
			return v
		}
		return s
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if v, ok := c.catalog[p]; ok {
			p = v
		}
		parts[i] = p
	}
	return strings.Join(parts, ",")
}
