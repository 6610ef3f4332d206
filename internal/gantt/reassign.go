package gantt

import (
	"sort"

	"ganttservice/internal/model"
)

// Renumbered pairs a task carrying its new id with the id it had before, so
// the live store can address each row by its old identifier.
type Renumbered struct {
	Task  model.GanttTask
	OldID int
}

// ReassignIDs renumbers a task forest to a dense 1..N sequence in canonical
// order: roots first sorted by old id, then breadth-first over children
// sorted by old id. Every parent_id and depends entry is rewritten through
// the old→new mapping; a parent missing from the mapping is nulled and
// unmapped depends entries are dropped.
//
// Tasks unreachable from any root (orphans under a deleted parent, members
// of a parent cycle) are appended after the BFS order, sorted by old id, so
// cardinality is always preserved.
func ReassignIDs(tasks []model.GanttTask) []Renumbered {
	if len(tasks) == 0 {
		return nil
	}

	childrenOf := make(map[int][]model.GanttTask)
	var roots []model.GanttTask
	for _, t := range tasks {
		if t.ParentID == nil {
			roots = append(roots, t)
		} else {
			childrenOf[*t.ParentID] = append(childrenOf[*t.ParentID], t)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].ID < roots[j].ID })

	oldToNew := make(map[int]int, len(tasks))
	order := make([]model.GanttTask, 0, len(tasks))
	next := 1

	queue := roots
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, done := oldToNew[current.ID]; done {
			continue
		}
		oldToNew[current.ID] = next
		next++
		order = append(order, current)

		kids := childrenOf[current.ID]
		sort.Slice(kids, func(i, j int) bool { return kids[i].ID < kids[j].ID })
		queue = append(queue, kids...)
	}

	// BFS 没走到的任务（孤儿、环成员）按旧 id 续上，保证数量不变
	if len(order) < len(tasks) {
		var rest []model.GanttTask
		for _, t := range tasks {
			if _, done := oldToNew[t.ID]; !done {
				rest = append(rest, t)
			}
		}
		sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })
		for _, t := range rest {
			oldToNew[t.ID] = next
			next++
			order = append(order, t)
		}
	}

	out := make([]Renumbered, 0, len(order))
	for _, t := range order {
		oldID := t.ID
		t.ID = oldToNew[oldID]
		if t.ParentID != nil {
			if newParent, ok := oldToNew[*t.ParentID]; ok {
				p := newParent
				t.ParentID = &p
			} else {
				t.ParentID = nil
			}
		}
		if t.Depends != nil {
			remapped := make([]int, 0, len(t.Depends))
			for _, dep := range t.Depends {
				if newDep, ok := oldToNew[dep]; ok {
					remapped = append(remapped, newDep)
				}
			}
			t.Depends = remapped
		}
		out = append(out, Renumbered{Task: t, OldID: oldID})
	}
	return out
}
