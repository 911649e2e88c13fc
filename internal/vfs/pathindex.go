package vfs

import (
	"fmt"
	"sort"
	"strings"
)

// rootKey is the childrenOf sentinel for filesystem roots (parentID ==
// nil). File ids are always non-empty uuids, so "" never collides.
const rootKey = ""

// repair is a self-heal the index rebuild decided to write back to the
// files table: clear id's parentId. Self-repair never stays purely
// in-memory — it writes the corrected entry back to the substrate.
type repair struct{ id string }

// PathIndex is the reactive, fully-recomputed-on-every-change view:
// path <-> id lookup plus ordered children listing, built from a
// cycle-free, orphan-free, name-disambiguated view of the live files.
type PathIndex struct {
	pathToID   map[string]string
	idToPath   map[string]string
	childrenOf map[string][]string
}

// PathToID returns the full path -> file id map.
func (p *PathIndex) PathToID() map[string]string { return p.pathToID }

// PathOf returns the path of a live file id.
func (p *PathIndex) PathOf(id string) (string, bool) {
	s, ok := p.idToPath[id]
	return s, ok
}

// ChildrenOf returns the ids of parentID's live children (nil =
// roots), ordered by (createdAt, id).
func (p *PathIndex) ChildrenOf(parentID *string) []string {
	key := rootKey
	if parentID != nil {
		key = *parentID
	}
	return p.childrenOf[key]
}

// buildPathIndex rebuilds the index from scratch: break cycles,
// re-parent orphans, disambiguate sibling names, then compute every
// path. Returns the repairs the caller should write back to the files
// table.
func buildPathIndex(rows []FileRow) (*PathIndex, []repair) {
	byID := make(map[string]FileRow, len(rows))
	parentOf := make(map[string]*string, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
		parentOf[r.ID] = r.ParentID
	}

	var repairs []repair
	repairs = append(repairs, breakCycles(byID, parentOf)...)
	repairs = append(repairs, reparentOrphans(byID, parentOf)...)

	childrenOf := groupChildren(byID, parentOf)
	finalName := disambiguateNames(byID, childrenOf)
	idToPath := computePaths(parentOf, finalName)

	pathToID := make(map[string]string, len(idToPath))
	for id, p := range idToPath {
		pathToID[p] = id
	}

	return &PathIndex{pathToID: pathToID, idToPath: idToPath, childrenOf: childrenOf}, repairs
}

// breakCycles walks the parent chain of every row up to depth 50. A
// chain that revisits a node it already walked this pass is a cycle;
// the member with the greatest (updatedAt, id) is cut loose as a new
// root. parentOf is mutated in place so later steps see the repaired
// shape immediately.
func breakCycles(byID map[string]FileRow, parentOf map[string]*string) []repair {
	broken := map[string]bool{}
	var repairs []repair

	for start := range byID {
		if broken[start] {
			continue
		}
		var path []string
		pos := map[string]int{}
		cur := start
		for depth := 0; depth <= 50; depth++ {
			if broken[cur] {
				break
			}
			if i, seen := pos[cur]; seen {
				victim := pickCycleVictim(path[i:], byID)
				parentOf[victim] = nil
				broken[victim] = true
				repairs = append(repairs, repair{id: victim})
				break
			}
			pos[cur] = len(path)
			path = append(path, cur)

			p := parentOf[cur]
			if p == nil {
				break
			}
			if _, ok := byID[*p]; !ok {
				break // dangling parent, handled by reparentOrphans
			}
			cur = *p
		}
	}
	return repairs
}

func pickCycleVictim(cycle []string, byID map[string]FileRow) string {
	best := cycle[0]
	for _, id := range cycle[1:] {
		a, b := byID[best], byID[id]
		if b.UpdatedAt > a.UpdatedAt || (b.UpdatedAt == a.UpdatedAt && b.ID > a.ID) {
			best = id
		}
	}
	return best
}

// reparentOrphans promotes any row whose parentId no longer names a
// live row to a root.
func reparentOrphans(byID map[string]FileRow, parentOf map[string]*string) []repair {
	var repairs []repair
	for id := range byID {
		p := parentOf[id]
		if p == nil {
			continue
		}
		if _, ok := byID[*p]; !ok {
			parentOf[id] = nil
			repairs = append(repairs, repair{id: id})
		}
	}
	return repairs
}

func groupChildren(byID map[string]FileRow, parentOf map[string]*string) map[string][]string {
	childrenOf := map[string][]string{}
	for id := range byID {
		key := rootKey
		if p := parentOf[id]; p != nil {
			key = *p
		}
		childrenOf[key] = append(childrenOf[key], id)
	}
	for key, ids := range childrenOf {
		sort.Slice(ids, func(i, j int) bool {
			ri, rj := byID[ids[i]], byID[ids[j]]
			if ri.CreatedAt != rj.CreatedAt {
				return ri.CreatedAt < rj.CreatedAt
			}
			return ri.ID < rj.ID
		})
		childrenOf[key] = ids
	}
	return childrenOf
}

// disambiguateNames assigns each id a display name unique among its
// siblings: the earliest-created keeps its raw name, later duplicates
// get a " (n)" suffix inserted before the final extension.
func disambiguateNames(byID map[string]FileRow, childrenOf map[string][]string) map[string]string {
	finalName := make(map[string]string, len(byID))
	for _, ids := range childrenOf {
		counts := map[string]int{}
		for _, id := range ids {
			name := byID[id].Name
			counts[name]++
			finalName[id] = disambiguate(name, counts[name])
		}
	}
	return finalName
}

func disambiguate(name string, occurrence int) string {
	if occurrence <= 1 {
		return name
	}
	suffix := fmt.Sprintf(" (%d)", occurrence-1)
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name + suffix
	}
	return name[:idx] + suffix + name[idx:]
}

// computePaths walks each id up to its root, joining disambiguated
// names. A depth-50 guard stands in for the cycle guard the rebuild
// already enforced, so a stray bug here fails safe instead of looping.
func computePaths(parentOf map[string]*string, finalName map[string]string) map[string]string {
	paths := make(map[string]string, len(finalName))
	var resolve func(id string, depth int) string
	resolve = func(id string, depth int) string {
		if p, ok := paths[id]; ok {
			return p
		}
		name := finalName[id]
		var full string
		parent := parentOf[id]
		if parent == nil || depth > 50 {
			full = "/" + name
		} else {
			full = strings.TrimRight(resolve(*parent, depth+1), "/") + "/" + name
		}
		paths[id] = full
		return full
	}
	for id := range finalName {
		resolve(id, 0)
	}
	return paths
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
