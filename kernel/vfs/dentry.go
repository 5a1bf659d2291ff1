package vfs

import "rvos/kernel/sync"

// Dentry is an immutable name bound to an Inode, with a weak parent link and
// a cache of already-resolved children (spec.md §4.8). Go's garbage
// collector breaks reference cycles on its own, so "weak" here just means
// the invariant the original design relies on a weak pointer for -- Parent
// never extends the child's lifetime -- still holds; nothing about dentry
// lifetime management needs changing for that.
type Dentry struct {
	mu sync.SpinLock

	Name   string
	Inode  Inode
	Parent *Dentry

	children map[string]*Dentry
	// MountRoot, if set, is the root dentry of a filesystem mounted at
	// this dentry; path resolution transparently follows it.
	MountRoot *Dentry
}

// NewDentry creates a dentry for name/inode under parent. parent may be nil
// only for the global root.
func NewDentry(name string, inode Inode, parent *Dentry) *Dentry {
	return &Dentry{Name: name, Inode: inode, Parent: parent, children: map[string]*Dentry{}}
}

// Path reconstructs the dentry's absolute path by walking Parent links
// (spec.md §4.8's invariant: "a dentry's path is parent.path() + '/' +
// name").
func (d *Dentry) Path() string {
	if d.Parent == nil {
		return "/"
	}
	parent := d.Parent.Path()
	if parent == "/" {
		return "/" + d.Name
	}
	return parent + "/" + d.Name
}

// Child returns a cached child by name, or (nil, false).
func (d *Dentry) Child(name string) (*Dentry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.children[name]
	return c, ok
}

// CacheChild inserts child into d's child cache under child.Name.
func (d *Dentry) CacheChild(child *Dentry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.children[child.Name] = child
}

// Uncache drops a cached child by name (used by unlink/rmdir).
func (d *Dentry) Uncache(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.children, name)
}
