// Package archive opens, validates and indexes registry export archives.
package archive

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/JonMunkholm/mastr-ingest/internal/core"
	"github.com/JonMunkholm/mastr-ingest/internal/logging"
)

// CatalogKey is the entity type holding the catalog values used for cleansing.
const CatalogKey = "katalogwerte"

// State is the integrity state of an archive.
type State int

const (
	StateUnknown State = iota
	StateValid
	StateCorrupt
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Archive is an opened export ZIP.
type Archive struct {
	Path        string
	PublishDate time.Time // Zero when the filename carries no date
	State       State

	zr    *zip.ReadCloser
	files map[string]*zip.File
	names []string
}

// Open opens the ZIP at path. A file that is not a readable ZIP yields
// core.ErrCorruptArchive.
func Open(path string) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w: %w", path, core.ErrCorruptArchive, err)
	}

	a := &Archive{
		Path:  path,
		zr:    zr,
		files: make(map[string]*zip.File, len(zr.File)),
		names: make([]string, 0, len(zr.File)),
	}
	if d, ok := ParsePublishDate(filepath.Base(path)); ok {
		a.PublishDate = d
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		a.files[f.Name] = f
		a.names = append(a.names, f.Name)
	}
	return a, nil
}

// Close releases the underlying file.
func (a *Archive) Close() error {
	return a.zr.Close()
}

// Names returns the member names in archive order.
func (a *Archive) Names() []string {
	return append([]string(nil), a.names...)
}

// Open returns a reader for one member.
func (a *Archive) Open(name string) (io.ReadCloser, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("member %s not in archive", name)
	}
	return f.Open()
}

// Validate reads every member to the end so the CRC-32 of each entry is
// verified. The archive state is updated accordingly.
func (a *Archive) Validate(ctx context.Context) error {
	log := logging.WithFields(ctx, "archive", filepath.Base(a.Path))
	start := time.Now()

	for _, name := range a.names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.checkMember(name); err != nil {
			a.State = StateCorrupt
			log.Warn("archive member failed integrity check", "member", name, "error", err)
			return fmt.Errorf("validate %s: member %s: %w: %w", a.Path, name, core.ErrCorruptArchive, err)
		}
	}

	a.State = StateValid
	log.Info("archive validated", "members", len(a.names), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (a *Archive) checkMember(name string) error {
	rc, err := a.files[name].Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

// Validate opens path and checks every member.
func Validate(ctx context.Context, path string) error {
	a, err := Open(path)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Validate(ctx)
}

// Index returns the schedule-ready partitions of the archive: XML members in
// restored numeric order, restricted to registered, loadable and selected
// entity types. Unknown entity types are skipped with a warning. Partitions of
// one entity type are always in ascending sequence, whatever OrderEntries made
// of the listing. The lowest sequence of every entity type is marked First.
func (a *Archive) Index(ctx context.Context, sel core.Selection) []core.Partition {
	log := logging.FromContext(ctx)

	var parts []core.Partition
	warned := make(map[string]bool)

	for _, name := range OrderEntries(a.names) {
		if !strings.EqualFold(filepath.Ext(name), ".xml") {
			continue
		}
		key := EntityKey(name)
		relevant, known := core.Relevant(key, sel)
		if !known {
			if !warned[key] {
				warned[key] = true
				log.Warn("file is not part of the known entity types and is skipped", "file", name, "entity_type", key)
			}
			continue
		}
		if !relevant {
			continue
		}

		et, _ := core.Get(key)
		seq := Sequence(name)

		member := name
		parts = append(parts, core.Partition{
			Name:       member,
			EntityType: et.Key,
			Table:      et.Table,
			Sequence:   seq,
			Open:       func() (io.ReadCloser, error) { return a.Open(member) },
		})
	}

	sortSequences(parts)

	seen := make(map[string]bool)
	for i := range parts {
		if !seen[parts[i].EntityType] {
			seen[parts[i].EntityType] = true
			parts[i].First = true
		}
	}
	return parts
}

// sortSequences orders the partitions of every entity type by Sequence
// while leaving the slots each entity type occupies unchanged.
func sortSequences(parts []core.Partition) {
	slots := make(map[string][]int)
	var keys []string
	for i, p := range parts {
		if _, ok := slots[p.EntityType]; !ok {
			keys = append(keys, p.EntityType)
		}
		slots[p.EntityType] = append(slots[p.EntityType], i)
	}

	for _, key := range keys {
		idx := slots[key]
		group := make([]core.Partition, len(idx))
		for j, i := range idx {
			group[j] = parts[i]
		}
		slices.SortStableFunc(group, func(a, b core.Partition) int {
			return cmp.Compare(a.Sequence, b.Sequence)
		})
		for j, i := range idx {
			parts[i] = group[j]
		}
	}
}

// Catalog parses every Katalogwerte member into one lookup.
// Returns an empty catalog when the archive has none.
func (a *Archive) Catalog(ctx context.Context) (core.Catalog, error) {
	cat := make(core.Catalog)
	for _, name := range a.names {
		if EntityKey(name) != CatalogKey || !strings.EqualFold(filepath.Ext(name), ".xml") {
			continue
		}
		rc, err := a.Open(name)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w: %w", name, core.ErrCorruptArchive, err)
		}
		part, err := core.ParseCatalog(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		for k, v := range part {
			cat[k] = v
		}
	}
	logging.FromContext(ctx).Info("catalog loaded", "values", len(cat))
	return cat, nil
}
