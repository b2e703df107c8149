package ecs

// mask is a bitset over TypeIDs. It grows with the highest id set, so the
// number of component types is not capped.
type mask []uint64

const bitsPerWord = 64

func makeMask(ids []TypeID) mask {
	var m mask
	for _, id := range ids {
		m = m.set(id)
	}
	return m
}

func (m mask) set(id TypeID) mask {
	word := int(id / bitsPerWord)
	for len(m) <= word {
		m = append(m, 0)
	}
	m[word] |= 1 << (id % bitsPerWord)
	return m
}

func (m mask) has(id TypeID) bool {
	word := int(id / bitsPerWord)
	if word >= len(m) {
		return false
	}
	return m[word]&(1<<(id%bitsPerWord)) != 0
}

// includesAll reports whether every bit of sub is set in m.
func (m mask) includesAll(sub mask) bool {
	for i, w := range sub {
		var have uint64
		if i < len(m) {
			have = m[i]
		}
		if have&w != w {
			return false
		}
	}
	return true
}

// intersects reports whether m and o share any bit.
func (m mask) intersects(o mask) bool {
	n := min(len(m), len(o))
	for i := 0; i < n; i++ {
		if m[i]&o[i] != 0 {
			return true
		}
	}
	return false
}
