package leaderboard

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"github.com/tamaskk/foodybackend-sub000/core"
)

// A skip list keyed by (primary desc, secondary desc, user asc). Every
// forward pointer carries its span so ranks are O(log n) as well.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	e    Entry
	next [maxLevel]*node
	span [maxLevel]int64
}

type SkipList struct {
	mu     sync.RWMutex
	head   *node
	lvl    int
	length int64
	byUser map[core.UserID]*node
	rng    *rand.Rand
}

func NewSkipList() *SkipList {
	// Use crypto/rand to generate a secure seed for PCG
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		seed = [16]byte{}
	}
	seed1 := binary.BigEndian.Uint64(seed[:8])
	seed2 := binary.BigEndian.Uint64(seed[8:])

	return &SkipList{
		head:   &node{},
		lvl:    1,
		byUser: map[core.UserID]*node{},
		rng:    rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

// Less reports whether a sorts before b on a board.
func Less(a, b Entry) bool {
	if a.Primary != b.Primary {
		return a.Primary > b.Primary
	}
	if a.Secondary != b.Secondary {
		return a.Secondary > b.Secondary
	}
	return a.User < b.User
}

// Update inserts or moves user to the given key.
func (s *SkipList) Update(user core.UserID, primary, secondary int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := Entry{User: user, Primary: primary, Secondary: secondary}
	if old, ok := s.byUser[user]; ok {
		if old.e == e {
			return
		}
		s.removeLocked(old.e)
	}

	var update [maxLevel]*node
	var rank [maxLevel]int64
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		if i < s.lvl-1 {
			rank[i] = rank[i+1]
		}
		for cur.next[i] != nil && Less(cur.next[i].e, e) {
			rank[i] += cur.span[i]
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			update[i] = s.head
			s.head.span[i] = s.length
		}
		s.lvl = lvl
	}
	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
		n.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = rank[0] - rank[i] + 1
	}
	for i := lvl; i < s.lvl; i++ {
		update[i].span[i]++
	}
	s.length++
	s.byUser[user] = n
}

func (s *SkipList) removeLocked(e Entry) {
	var update [maxLevel]*node
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && Less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	target := update[0].next[0]
	if target == nil || target.e.User != e.User {
		return
	}
	for i := 0; i < s.lvl; i++ {
		if update[i].next[i] == target {
			update[i].span[i] += target.span[i] - 1
			update[i].next[i] = target.next[i]
		} else {
			update[i].span[i]--
		}
	}
	delete(s.byUser, e.User)
	s.length--
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
}

func (s *SkipList) Remove(user core.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byUser[user]; ok {
		s.removeLocked(n.e)
	}
}

func (s *SkipList) TopN(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	out := make([]Entry, 0, min(int64(n), s.length))
	cur := s.head.next[0]
	for cur != nil && len(out) < n {
		out = append(out, cur.e)
		cur = cur.next[0]
	}
	return out
}

func (s *SkipList) Get(user core.UserID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byUser[user]; ok {
		return n.e, true
	}
	return Entry{}, false
}

// CountBefore returns how many entries sort strictly before e. e need not
// be in the list.
func (s *SkipList) CountBefore(e Entry) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rank int64
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && Less(cur.next[i].e, e) {
			rank += cur.span[i]
			cur = cur.next[i]
		}
	}
	return rank
}

// Rank returns the 1-based position of user.
func (s *SkipList) Rank(user core.UserID) (int64, bool) {
	e, ok := s.Get(user)
	if !ok {
		return 0, false
	}
	return s.CountBefore(e) + 1, true
}

func (s *SkipList) Len() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.length
}

var _ OrderedSet = (*SkipList)(nil)
