package simpleaccount

import "github.com/google/uuid"

// PartitionCategories splits candidates, the categories created by one user,
// into shared and exclusive sets. foreign holds the links on those categories
// made by other authors' content. A category is shared when it appears in
// foreign and exclusive otherwise, including when nothing links it at all.
//
// Both sets keep the order of candidates and contain no duplicates. Entries of
// foreign outside candidates are ignored.
func PartitionCategories(candidates []uuid.UUID, foreign []CategoryAuthor) CategoryOwnership {
	linked := make(map[uuid.UUID]struct{}, len(foreign))
	for _, fa := range foreign {
		linked[fa.CategoryID] = struct{}{}
	}

	ownership := CategoryOwnership{
		Exclusive: []uuid.UUID{},
		Shared:    []uuid.UUID{},
	}
	seen := make(map[uuid.UUID]struct{}, len(candidates))
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if _, ok := linked[id]; ok {
			ownership.Shared = append(ownership.Shared, id)
		} else {
			ownership.Exclusive = append(ownership.Exclusive, id)
		}
	}
	return ownership
}
