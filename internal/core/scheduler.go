package core

// scheduler.go orders partitions for dispatch.
//
// Partitions of one destination table are spread out so concurrent workers
// mostly write to different tables, reducing lock contention on a single
// table and its primary key index.

// Interleave groups partitions by destination table (groups in first-seen
// order, members in input order) and emits one partition per group per round.
//
// Example: [a1 a2 a3 b1 c1 c2] -> [a1 b1 c1 a2 c2 a3]
func Interleave(parts []Partition) []Partition {
	if len(parts) == 0 {
		return nil
	}

	var order []string
	groups := make(map[string][]Partition)
	longest := 0
	for _, p := range parts {
		if _, ok := groups[p.Table]; !ok {
			order = append(order, p.Table)
		}
		groups[p.Table] = append(groups[p.Table], p)
		longest = max(longest, len(groups[p.Table]))
	}

	out := make([]Partition, 0, len(parts))
	for round := 0; round < longest; round++ {
		for _, table := range order {
			if g := groups[table]; round < len(g) {
				out = append(out, g[round])
			}
		}
	}
	return out
}

// tableOwners returns, per entity type in first-seen order, the partition
// that creates its table: the one marked First, or the first scheduled one
// when the indexer marked none.
func tableOwners(parts []Partition) []Partition {
	idx := make(map[string]int)
	var owners []Partition
	for _, p := range parts {
		i, ok := idx[p.EntityType]
		switch {
		case !ok:
			idx[p.EntityType] = len(owners)
			owners = append(owners, p)
		case p.First && !owners[i].First:
			owners[i] = p
		}
	}
	return owners
}
