package index

// PostingList is the sorted, duplicate-free set of record ids carrying a root.
type PostingList []string

// Contains reports whether id is in the list.
func (p PostingList) Contains(id string) bool {
	lo, hi := 0, len(p)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		switch {
		case p[mid] == id:
			return true
		case p[mid] < id:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false
}

// TermEntry pairs a root with its postings.
type TermEntry struct {
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}

// Stats summarises an index.
type Stats struct {
	Docs        int `json:"docs"`
	IndexedDocs int `json:"indexed_docs"`
	Terms       int `json:"terms"`
	Postings    int `json:"postings"`
}
