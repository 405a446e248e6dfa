package dummy

import (
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
)

const defaultVirtualNodes = 150

// HashRing maps keys to nodes with consistent hashing over FNV-1a.
type HashRing struct {
	mu     sync.RWMutex
	vnodes int
	keys   []uint32
	owners map[uint32]string
	nodes  []string
}

func NewHashRing(virtualNodes int) *HashRing {
	if virtualNodes <= 0 {
		virtualNodes = defaultVirtualNodes
	}
	return &HashRing{
		vnodes: virtualNodes,
		owners: make(map[uint32]string),
	}
}

func hashKey(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func (r *HashRing) Add(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.vnodes; i++ {
		h := hashKey(node + "#" + strconv.Itoa(i))
		if _, ok := r.owners[h]; !ok {
			r.keys = append(r.keys, h)
		}
		r.owners[h] = node
	}
	sort.Slice(r.keys, func(i, j int) bool { return r.keys[i] < r.keys[j] })
	r.nodes = append(r.nodes, node)
}

// Get returns the node owning key, or "" for an empty ring.
func (r *HashRing) Get(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.keys) == 0 {
		return ""
	}
	h := hashKey(key)
	i := sort.Search(len(r.keys), func(i int) bool { return r.keys[i] >= h })
	if i == len(r.keys) {
		i = 0
	}
	return r.owners[r.keys[i]]
}

// Nodes returns the nodes in insertion order.
func (r *HashRing) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.nodes...)
}
