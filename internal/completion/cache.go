package completion

// Cache expands a fixed set of providers once per menu activation and
// re-expands on later keystrokes only the providers whose last expansion
// read the pattern. A Cache is not safe for concurrent use.
type Cache struct {
	roots []*cacheEntry
}

type cacheEntry struct {
	item        Item
	initialized bool
	usesPattern bool
	children    []*cacheEntry
	expansions  int
}

// NewCache returns a cache over providers.
func NewCache(providers ...Provider) *Cache {
	c := &Cache{roots: make([]*cacheEntry, len(providers))}
	for i, p := range providers {
		c.roots[i] = &cacheEntry{item: ProviderItem(p)}
	}
	return c
}

// Update returns the actions for params in provider order.
func (c *Cache) Update(params *Params) ([]Action, error) {
	var out []Action
	for _, e := range c.roots {
		var err error
		if out, err = e.update(params, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *cacheEntry) update(params *Params, out []Action) ([]Action, error) {
	switch {
	case e.item.Action != nil:
		return append(out, e.item.Action), nil
	case e.item.Provider == nil:
		return nil, ErrEmptyItem
	}

	if !e.initialized || e.usesPattern {
		params.consumeAccessed()
		items, err := e.item.Provider.Provide(params)
		if err != nil {
			return nil, err
		}
		e.usesPattern = params.consumeAccessed()
		e.initialized = true
		e.expansions++
		e.children = make([]*cacheEntry, len(items))
		for i, it := range items {
			e.children[i] = &cacheEntry{item: it}
		}
	}
	for _, child := range e.children {
		var err error
		if out, err = child.update(params, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Flatten expands providers without caching.
func Flatten(params *Params, providers ...Provider) ([]Action, error) {
	return NewCache(providers...).Update(params)
}
