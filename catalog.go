package coredb

import "sync"

// Catalog maps a table id to its backing DBFile and name. The catalog
// schema file's line-oriented syntax is external per spec section 6; this
// type is just the in-memory map the core reads through.
type Catalog struct {
	mu        sync.RWMutex
	byID      map[int]DBFile
	nameByID  map[int]string
	idByName  map[string]int
	nextTable int
}

func NewCatalog() *Catalog {
	return &Catalog{
		byID:     make(map[int]DBFile),
		nameByID: make(map[int]string),
		idByName: make(map[string]int),
	}
}

// AddTable registers a table under name, returning its freshly assigned
// table id.
func (c *Catalog) AddTable(name string, file DBFile) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextTable
	c.nextTable++
	c.byID[id] = file
	c.nameByID[id] = name
	c.idByName[name] = id
	return id
}

// GetTable resolves a table id to its DBFile, or DbException if missing
// (spec section 7).
func (c *Catalog) GetTable(id int) (DBFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.byID[id]
	if !ok {
		return nil, NewGoDBError(NoSuchTableError, "no such table")
	}
	return f, nil
}

// GetTableID resolves a table name to its id.
func (c *Catalog) GetTableID(name string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.idByName[name]
	if !ok {
		return 0, NewGoDBError(NoSuchTableError, "no such table: "+name)
	}
	return id, nil
}

// TableName returns the display name registered for a table id.
func (c *Catalog) TableName(id int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nameByID[id]
}

// DbContext threads BufferPool/Catalog/LogFile through operator
// constructors and the transaction driver explicitly (the LockPool is
// reached through BufferPool.LockPool()), replacing the
// Database.getBufferPool()/getCatalog()/getLogFile() singletons spec
// section 9's design notes call out: tests that need swappable
// implementations get them for free. The transaction id counter (NewTID)
// stays package-level.
type DbContext struct {
	BufferPool *BufferPool
	Catalog    *Catalog
	LogFile    LogFile
}

// NewDbContext wires up a BufferPool of the given capacity, a fresh
// Catalog, and an in-memory LogFile.
func NewDbContext(bufferPoolPages int) *DbContext {
	bp := NewBufferPool(bufferPoolPages)
	lf := NewInMemoryLogFile()
	bp.SetLogFile(lf)
	catalog := NewCatalog()
	bp.SetCatalog(catalog)
	return &DbContext{
		BufferPool: bp,
		Catalog:    catalog,
		LogFile:    lf,
	}
}
