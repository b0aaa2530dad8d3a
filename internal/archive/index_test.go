package archive

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/JonMunkholm/mastr-ingest/internal/core"
)

func sequences(parts []core.Partition, entityType string) []int {
	var seqs []int
	for _, p := range parts {
		if p.EntityType == entityType {
			seqs = append(seqs, p.Sequence)
		}
	}
	return seqs
}

func TestIndex_AscendingSequenceBelowThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.zip")
	writeZip(t, path, [][2]string{
		{"EinheitenWind_1.xml", "<EinheitenWind/>"},
		{"EinheitenWind_10.xml", "<EinheitenWind/>"},
		{"EinheitenWind_2.xml", "<EinheitenWind/>"},
	})
	a, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	parts := core.Interleave(a.Index(context.Background(), core.Select([]string{"wind"})))

	if got := sequences(parts, "einheitenwind"); !reflect.DeepEqual(got, []int{1, 2, 10}) {
		t.Fatalf("sequences = %v, want [1 2 10]", got)
	}
	if !parts[0].First || parts[1].First || parts[2].First {
		t.Errorf("only EinheitenWind_1.xml should be First: %+v", parts)
	}
}

func TestSortSequences_KeepsEntityTypeSlots(t *testing.T) {
	parts := []core.Partition{
		{Name: "w10", EntityType: "wind", Sequence: 10},
		{Name: "s2", EntityType: "solar", Sequence: 2},
		{Name: "w2", EntityType: "wind", Sequence: 2},
		{Name: "s1", EntityType: "solar", Sequence: 1},
		{Name: "w1", EntityType: "wind", Sequence: 1},
	}
	sortSequences(parts)

	var names []string
	for _, p := range parts {
		names = append(names, p.Name)
	}
	if want := []string{"w1", "s1", "w2", "s2", "w10"}; !reflect.DeepEqual(names, want) {
		t.Errorf("order = %v, want %v", names, want)
	}
}

func TestProperty_IndexSequencesAscending(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("partitions of one entity type are scheduled by ascending sequence", prop.ForAll(
		func(count int, seed int64) bool {
			var members [][2]string
			for i := 1; i <= count; i++ {
				members = append(members,
					[2]string{fmt.Sprintf("EinheitenWind_%d.xml", i), "<EinheitenWind/>"},
					[2]string{fmt.Sprintf("EinheitenSolar_%d.xml", i), "<EinheitenSolar/>"},
				)
			}
			rand.New(rand.NewSource(seed)).Shuffle(len(members), func(i, j int) {
				members[i], members[j] = members[j], members[i]
			})

			path := filepath.Join(t.TempDir(), "export.zip")
			writeZip(t, path, members)
			a, err := Open(path)
			if err != nil {
				return false
			}
			defer a.Close()

			parts := core.Interleave(a.Index(context.Background(), core.Select(nil)))
			for _, key := range []string{"einheitenwind", "einheitensolar"} {
				seqs := sequences(parts, key)
				if len(seqs) != count {
					return false
				}
				for i := range seqs {
					if seqs[i] != i+1 {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 15),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
