package fuzzy

// match scores one term against a lower-cased value. Lower scores are better; 0 is exact.
func (t term) match(text []rune, threshold float64) (float64, [][2]int, bool) {
	switch t.kind {
	case termInclude:
		ranges := indexAll(text, t.pattern)
		return 0, ranges, len(ranges) > 0
	case termExact:
		if equalRunes(text, t.pattern) {
			return 0, [][2]int{{0, len(text) - 1}}, true
		}
	case termPrefix:
		if len(text) >= len(t.pattern) && equalRunes(text[:len(t.pattern)], t.pattern) {
			return 0, [][2]int{{0, len(t.pattern) - 1}}, true
		}
	case termSuffix:
		if off := len(text) - len(t.pattern); off >= 0 && equalRunes(text[off:], t.pattern) {
			return 0, [][2]int{{off, len(text) - 1}}, true
		}
	case termInverse:
		return 0, nil, len(indexAll(text, t.pattern)) == 0
	case termFuzzy:
		if ranges := indexAll(text, t.pattern); len(ranges) > 0 {
			return 0, ranges, true
		}
		dist, start, end := bestAlignment(t.pattern, text)
		score := float64(dist) / float64(len(t.pattern))
		if score <= threshold {
			return score, [][2]int{{start, end}}, true
		}
	}
	return 1, nil, false
}

// bestAlignment is Sellers' semi-global edit distance: the fewest edits turning pattern into
// any substring of text, with the inclusive bounds of that substring.
func bestAlignment(pattern, text []rune) (int, int, int) {
	m := len(pattern)
	cost := make([]int, m+1)
	start := make([]int, m+1)
	next := make([]int, m+1)
	nextStart := make([]int, m+1)
	for i := range cost {
		cost[i] = i
	}

	best, bestStart, bestEnd := m, 0, -1
	for j := 1; j <= len(text); j++ {
		next[0], nextStart[0] = 0, j
		for i := 1; i <= m; i++ {
			sub := 1
			if pattern[i-1] == text[j-1] {
				sub = 0
			}
			c, s := cost[i-1]+sub, start[i-1]
			if up := next[i-1] + 1; up < c {
				c, s = up, nextStart[i-1]
			}
			if left := cost[i] + 1; left < c {
				c, s = left, start[i]
			}
			next[i], nextStart[i] = c, s
		}
		cost, next = next, cost
		start, nextStart = nextStart, start
		if cost[m] < best {
			best, bestStart, bestEnd = cost[m], start[m], j-1
			if best == 0 {
				break
			}
		}
	}
	if bestEnd < bestStart {
		bestEnd = bestStart
	}
	return best, bestStart, bestEnd
}

func indexAll(text, pattern []rune) [][2]int {
	if len(pattern) == 0 || len(pattern) > len(text) {
		return nil
	}
	var out [][2]int
	for i := 0; i+len(pattern) <= len(text); i++ {
		if equalRunes(text[i:i+len(pattern)], pattern) {
			out = append(out, [2]int{i, i + len(pattern) - 1})
			i += len(pattern) - 1
		}
	}
	return out
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
