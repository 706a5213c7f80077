package tree

// =============================================================================
// Browse Result Types
// =============================================================================

// Entry types reported by Browse.
const (
	EntryShelf    = "shelf"
	EntryLoader   = "loader"
	EntryFragment = "fragment"
)

// BrowseEntry represents a single entry in a listing.
type BrowseEntry struct {
	Name        string // Entry name (last path component)
	Path        string // Full path
	Type        string // "shelf", "loader" or "fragment"
	Description string // Run description, loaders only
	Children    int    // Shelf children or run fragments
}

// BrowseResult contains the results of a browse operation.
type BrowseResult struct {
	Path    string
	Entries []BrowseEntry
	IsLeaf  bool // True if Path is a run; Entries are its fragments
}

// =============================================================================
// Browse Operations
// =============================================================================

// Browse lists the node at path. Shelves list their children; runs list
// their fragments. Run descriptions force the meta fragment of each run.
func (t *Tree) Browse(path string) (*BrowseResult, error) {
	path = normalizePath(path)
	n, err := t.Resolve(path)
	if err != nil {
		return nil, err
	}

	result := &BrowseResult{Path: path}
	if n.loader != nil {
		result.IsLeaf = true
		for _, f := range n.loader.FragmentNames() {
			result.Entries = append(result.Entries, BrowseEntry{
				Name: f,
				Path: childPath(n.path, f),
				Type: EntryFragment,
			})
		}
		return result, nil
	}

	for _, child := range n.shelf.Children() {
		e := BrowseEntry{Name: child.name, Path: child.path, Type: child.kind}
		if child.loader != nil {
			e.Description = child.loader.Description()
			e.Children = len(child.loader.FragmentNames())
		} else {
			e.Children = child.shelf.Len()
		}
		result.Entries = append(result.Entries, e)
	}
	return result, nil
}
