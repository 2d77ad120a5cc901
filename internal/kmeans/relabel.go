package kmeans

import (
	"fmt"
	"sort"
)

// Group describes one relabeled cluster.
type Group struct {
	Label string
	Raw   int
	Size  int
}

// Label formats a 1-based size rank as Cluster_01, Cluster_02, ...
func Label(rank int) string {
	return fmt.Sprintf("Cluster_%02d", rank)
}

// Relabel maps raw cluster ids to size-ordered labels: the smallest cluster
// becomes Cluster_01. Equal sizes keep ascending raw-id order. Raw ids with no
// rows never receive a label. Groups are returned in rank order.
func Relabel(raw []int) ([]string, []Group) {
	counts := map[int]int{}
	for _, id := range raw {
		counts[id]++
	}
	groups := make([]Group, 0, len(counts))
	for id, n := range counts {
		groups = append(groups, Group{Raw: id, Size: n})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Raw < groups[j].Raw })
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Size < groups[j].Size })

	byRaw := make(map[int]string, len(groups))
	for i := range groups {
		groups[i].Label = Label(i + 1)
		byRaw[groups[i].Raw] = groups[i].Label
	}
	labels := make([]string, len(raw))
	for i, id := range raw {
		labels[i] = byRaw[id]
	}
	return labels, groups
}
