package table

// DefaultPageSize is used whenever a page size of zero or less is requested.
const DefaultPageSize = 10

// paginate splits rows into pages of size. An empty input yields exactly
// one empty page so that page 0 always exists.
func paginate(rows []DisplayRecord, size int) [][]DisplayRecord {
	if size <= 0 {
		size = DefaultPageSize
	}
	if len(rows) == 0 {
		return [][]DisplayRecord{{}}
	}
	pages := make([][]DisplayRecord, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		pages = append(pages, rows[start:end:end])
	}
	return pages
}

// clampPage keeps i within [0, count-1].
func clampPage(i, count int) int {
	if i >= count {
		i = count - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
