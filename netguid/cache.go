package netguid

import "strings"

type cacheEntry struct {
	pathName string
	noLoad   bool
}

// Cache maps GUID to (path_name, no_load) and hands out monotonically
// increasing static/dynamic indices. Index 0 is never assigned (GUID 0 is
// invalid); the first static index assigned is 1, producing GUID 3
// (index<<1|1); the first dynamic index assigned is 1, producing GUID 2
// (index<<1). GUID 1 (static index 0) is reserved as the Default sentinel
// and is never handed out by the allocator.
type Cache struct {
	entries     map[GUID]cacheEntry
	staticByPath map[string]GUID
	nextStatic  uint32
	nextDynamic uint32
	currentMap  string
}

// NewCache returns an empty Cache scoped to currentMap (used to decide
// no_load for static assignments whose path lies within the current map).
func NewCache(currentMap string) *Cache {
	return &Cache{
		entries:      make(map[GUID]cacheEntry),
		staticByPath: make(map[string]GUID),
		currentMap:   currentMap,
	}
}

func containsMap(path, mapName string) bool {
	if mapName == "" {
		return false
	}
	return strings.Contains(path, mapName)
}

// AssignNewNetGUIDFromPath always allocates a fresh static GUID for path,
// even if one was already assigned (use GetOrAssignNetGUIDForStatic for
// the idempotent variant).
func (c *Cache) AssignNewNetGUIDFromPath(path string) GUID {
	c.nextStatic++
	guid := GUID(c.nextStatic<<1 | 1)
	c.entries[guid] = cacheEntry{pathName: path, noLoad: containsMap(path, c.currentMap)}
	c.staticByPath[path] = guid
	return guid
}

// AssignNewNetGUIDForDynamicObject allocates a fresh dynamic GUID. name is
// an optional path-like label for diagnostics; no_load is always true for
// dynamic objects.
func (c *Cache) AssignNewNetGUIDForDynamicObject(name string) GUID {
	c.nextDynamic++
	guid := GUID(c.nextDynamic << 1)
	c.entries[guid] = cacheEntry{pathName: name, noLoad: true}
	return guid
}

// GetOrAssignNetGUIDForStatic returns the existing static GUID for path if
// one exists, else allocates a new one.
func (c *Cache) GetOrAssignNetGUIDForStatic(path string) GUID {
	if g, ok := c.staticByPath[path]; ok {
		return g
	}
	return c.AssignNewNetGUIDFromPath(path)
}

// FindStaticGUIDByPathName returns the static GUID for path, if assigned.
func (c *Cache) FindStaticGUIDByPathName(path string) (GUID, bool) {
	g, ok := c.staticByPath[path]
	return g, ok
}

// GetPathNameByGUID returns the cached path name for guid, or "" if
// unknown.
func (c *Cache) GetPathNameByGUID(guid GUID) string {
	return c.entries[guid].pathName
}

// NoLoad reports the cached no_load flag for guid.
func (c *Cache) NoLoad(guid GUID) bool {
	return c.entries[guid].noLoad
}

// Register inserts a (guid, path, no_load) triple directly, used when
// restoring hierarchy links computed elsewhere.
func (c *Cache) Register(guid GUID, path string, noLoad bool) {
	c.entries[guid] = cacheEntry{pathName: path, noLoad: noLoad}
	if guid.IsStatic() {
		c.staticByPath[path] = guid
	}
}

// ExportEntry is one link of an export chain: a GUID plus its cached path
// name and no_load flag.
type ExportEntry struct {
	GUID     GUID
	PathName string
	NoLoad   bool
}

// Hierarchy is the class/actor parent map used to build export chains,
// independent of the GUID cache itself.
type Hierarchy struct {
	parent map[GUID]GUID
}

// NewHierarchy returns an empty Hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{parent: make(map[GUID]GUID)}
}

// SetParent records that child's export chain continues through parent.
func (h *Hierarchy) SetParent(child, parent GUID) {
	h.parent[child] = parent
}

// RegisterHierarchyForStaticObjects walks pathNames outermost-first,
// assigning/retrieving static GUIDs and linking each inner entry as a
// child of the previous, returning the leaf GUID.
func (h *Hierarchy) RegisterHierarchyForStaticObjects(cache *Cache, pathNames []string) GUID {
	var prev GUID
	for i, path := range pathNames {
		g := cache.GetOrAssignNetGUIDForStatic(path)
		if i > 0 {
			h.SetParent(g, prev)
		}
		prev = g
	}
	return prev
}

// ExportGUID returns the chain [leaf, ..., root]: guid, then each
// registered ancestor, stopping when a GUID has no registered parent.
func (h *Hierarchy) ExportGUID(cache *Cache, guid GUID) []ExportEntry {
	var chain []ExportEntry
	cur := guid
	for {
		chain = append(chain, ExportEntry{
			GUID:     cur,
			PathName: cache.GetPathNameByGUID(cur),
			NoLoad:   cache.NoLoad(cur),
		})
		parent, ok := h.parent[cur]
		if !ok {
			return chain
		}
		cur = parent
	}
}
