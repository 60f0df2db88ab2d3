package core

import "sort"

// NewSummary returns a summary with every enterable category of the section
// keyed and unset. Values found in details override the unset entries.
func NewSummary(sectionID int64, date string, categories []Category, details []Detail) Summary {
	s := Summary{
		SectionID: sectionID,
		Date:      date,
		Values:    make(map[int64]*int64, len(categories)),
	}
	for _, c := range categories {
		if c.Enterable() {
			s.Values[c.ID] = nil
		}
	}
	for _, d := range details {
		if _, ok := s.Values[d.CategoryID]; ok {
			s.Values[d.CategoryID] = Int64(d.Value)
		}
	}
	return s
}

// Clone returns a deep copy so callers can hand summaries out safely.
func (s Summary) Clone() Summary {
	out := Summary{SectionID: s.SectionID, Date: s.Date, Values: make(map[int64]*int64, len(s.Values))}
	for k, v := range s.Values {
		if v != nil {
			out.Values[k] = Int64(*v)
		} else {
			out.Values[k] = nil
		}
	}
	return out
}

// CategoryIDs returns the summary's keys in ascending order.
func (s Summary) CategoryIDs() []int64 {
	ids := make([]int64, 0, len(s.Values))
	for id := range s.Values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SortCategories orders categories by ordinal ascending, breaking ties by id.
func SortCategories(cs []Category) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Ordinal != cs[j].Ordinal {
			return cs[i].Ordinal < cs[j].Ordinal
		}
		return cs[i].ID < cs[j].ID
	})
}

// SortSections orders sections by ordinal ascending, breaking ties by id.
func SortSections(ss []Section) {
	sort.SliceStable(ss, func(i, j int) bool {
		if ss[i].Ordinal != ss[j].Ordinal {
			return ss[i].Ordinal < ss[j].Ordinal
		}
		return ss[i].ID < ss[j].ID
	})
}
