package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MergeEvent records one binary merge of a hierarchical clustering.
// Left and Right reference either an item (0..N-1) or the node created by an
// earlier event (N+i for event i).
type MergeEvent struct {
	Left   int     `json:"left"`
	Right  int     `json:"right"`
	Height float64 `json:"height"`
}

// MergeTree is an ordered sequence of N-1 merge events over Items items.
type MergeTree struct {
	Items  int          `json:"items"`
	Events []MergeEvent `json:"events"`
}

// Edge is one edge of a minimum spanning tree between two items.
type Edge struct {
	U      int     `json:"u"`
	V      int     `json:"v"`
	Weight float64 `json:"weight"`
}

// MemberKind distinguishes the two cluster member representations.
type MemberKind int

const (
	// SingletonMember holds exactly one item index.
	SingletonMember MemberKind = iota
	// GroupMember holds two or more item indices.
	GroupMember
)

// Member is the membership of one cluster slot. A singleton is stored as a
// bare index; a group keeps its indices in merge order.
type Member struct {
	kind    MemberKind
	index   int
	indices []int
}

// Singleton returns a member holding a single item.
func Singleton(index int) Member {
	return Member{kind: SingletonMember, index: index}
}

// Group returns a member holding the given items. A one-element slice
// collapses to a singleton.
func Group(indices []int) Member {
	if len(indices) == 1 {
		return Singleton(indices[0])
	}
	return Member{kind: GroupMember, indices: indices}
}

// Kind reports which representation the member uses.
func (m Member) Kind() MemberKind {
	return m.kind
}

// Size returns the number of items in the member.
func (m Member) Size() int {
	if m.kind == SingletonMember {
		return 1
	}
	return len(m.indices)
}

// Items returns the item indices of the member. The returned slice must not
// be modified.
func (m Member) Items() []int {
	if m.kind == SingletonMember {
		return []int{m.index}
	}
	return m.indices
}

// Merge concatenates the items of two members, a first.
func Merge(a, b Member) Member {
	out := make([]int, 0, a.Size()+b.Size())
	out = append(out, a.Items()...)
	out = append(out, b.Items()...)
	return Group(out)
}

// String renders the member as {i,j,...}.
func (m Member) String() string {
	return fmt.Sprint(m.Items())
}

// Partition is one flat clustering of all items: slot index to member.
type Partition struct {
	Clusters []Member
}

// K returns the number of clusters in the partition.
func (p Partition) K() int {
	return len(p.Clusters)
}

// Labels returns a per-item cluster label slice of length n.
func (p Partition) Labels(n int) []int {
	labels := make([]int, n)
	for slot, m := range p.Clusters {
		for _, item := range m.Items() {
			labels[item] = slot
		}
	}
	return labels
}

// Canonical returns the clusters as sorted index sets ordered by their
// smallest item. Useful for comparing partitions independent of slot order.
func (p Partition) Canonical() [][]int {
	out := make([][]int, 0, len(p.Clusters))
	for _, m := range p.Clusters {
		items := append([]int(nil), m.Items()...)
		sort.Ints(items)
		out = append(out, items)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// ValidationScore is the score of one candidate cluster count.
type ValidationScore struct {
	K     int     `json:"k"`
	Score float64 `json:"score"`
}

// ConsensusBlock is a contiguous run of the reordered co-occurrence matrix
// in which every pair agreed in all clusterings.
type ConsensusBlock struct {
	Start        int   `json:"start"`
	End          int   `json:"end"`
	Members      []int `json:"members"`
	MeetsMinSize bool  `json:"meets_min_size"`
}

// Size returns the number of items in the block.
func (b ConsensusBlock) Size() int {
	return b.End - b.Start
}

// LinkagePair is one (linkage, distance metric) ensemble configuration.
type LinkagePair struct {
	Linkage string `json:"linkage" mapstructure:"linkage"`
	Metric  string `json:"metric" mapstructure:"metric"`
}

// String renders the pair as linkage-metric.
func (p LinkagePair) String() string {
	return p.Linkage + "-" + p.Metric
}

// ParseLinkagePair parses the linkage-metric form produced by String.
func ParseLinkagePair(s string) (LinkagePair, error) {
	linkage, metric, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || linkage == "" || metric == "" {
		return LinkagePair{}, fmt.Errorf("%w: %q is not of the form linkage-metric", ErrUnsupportedPair, s)
	}
	return LinkagePair{Linkage: strings.ToLower(linkage), Metric: strings.ToLower(metric)}, nil
}

// RunKind identifies what a stored run computed.
type RunKind string

const (
	RunKindValidation RunKind = "validation"
	RunKindEnsemble   RunKind = "ensemble"
)

// Run is the persisted summary of one validation or ensemble run.
type Run struct {
	ID             string    `json:"id"`
	Kind           RunKind   `json:"kind"`
	Source         string    `json:"source"`
	Items          int       `json:"items"`
	Clusters       int       `json:"clusters"`
	AchievedWeight float64   `json:"achieved_weight"`
	CreatedAt      time.Time `json:"created_at"`
}
