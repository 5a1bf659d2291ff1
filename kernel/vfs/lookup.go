package vfs

import (
	"strings"

	"rvos/kernel/kerrors"
)

// MaxSymlinkDepth bounds symlink-following recursion during path resolution
// (spec.md §4.8 leaves the exact bound an open question; 8 matches what
// most Unix-like kernels use and is small enough that a genuine loop fails
// fast rather than spinning).
const MaxSymlinkDepth = 8

// MaxPathLen bounds a path string copied in from user memory (Linux's
// PATH_MAX).
const MaxPathLen = 4096

// ResolveContext supplies the two anchors path resolution needs: root (what
// "/" means, possibly a chroot) and cwd (what a relative path is relative
// to), matching spec.md §4.6's per-task fs_struct.
type ResolveContext struct {
	Root *Dentry
	Cwd  *Dentry
}

// Resolve walks path to a Dentry, following mount points and, unless
// nofollow is set, a trailing symlink (spec.md §4.8's path resolution:
// "tokenize into components, consult the dentry cache, descend via
// Inode.Lookup on a cache miss, cross mount points transparently, follow
// symlinks up to a depth limit").
func Resolve(ctx ResolveContext, path string, nofollow bool) (*Dentry, *kerrors.Error) {
	return resolve(ctx, path, nofollow, 0)
}

func resolve(ctx ResolveContext, path string, nofollow bool, depth int) (*Dentry, *kerrors.Error) {
	cur := ctx.Cwd
	if strings.HasPrefix(path, "/") {
		cur = ctx.Root
	}
	if cur == nil {
		return nil, kerrors.ErrNotFound
	}

	parts := splitPath(path)
	for i, name := range parts {
		switch name {
		case ".":
			continue
		case "..":
			if cur.Parent != nil {
				cur = cur.Parent
			}
			continue
		}

		next, err := lookupChild(cur, name)
		if err != nil {
			return nil, err
		}
		next = crossMounts(next)

		isLast := i == len(parts)-1
		if !isLast || !nofollow {
			if meta, merr := next.Inode.Metadata(); merr == nil && meta.Type == TypeSymlink {
				if depth+1 >= MaxSymlinkDepth {
					return nil, kerrors.ErrSymlinkLoop
				}
				target, rerr := next.Inode.Readlink()
				if rerr != nil {
					return nil, wrapIOError(rerr)
				}
				targetCtx := ResolveContext{Root: ctx.Root, Cwd: cur}
				resolved, rerr2 := resolve(targetCtx, target, false, depth+1)
				if rerr2 != nil {
					return nil, rerr2
				}
				next = resolved
			}
		}

		cur = next
	}
	return cur, nil
}

// lookupChild resolves name under dir, consulting dir's dentry cache before
// falling back to Inode.Lookup. Inode.Lookup has no notion of the dentry
// tree, so the Parent link is stitched in here rather than trusted from
// whatever the filesystem driver returned.
func lookupChild(dir *Dentry, name string) (*Dentry, *kerrors.Error) {
	if d, ok := dir.Child(name); ok {
		return d, nil
	}
	meta, err := dir.Inode.Metadata()
	if err != nil {
		return nil, wrapIOError(err)
	}
	if meta.Type != TypeDirectory {
		return nil, kerrors.ErrNotDirectory
	}
	child, err := dir.Inode.Lookup(name)
	if err != nil {
		return nil, wrapIOError(err)
	}
	child.Parent = dir
	dir.CacheChild(child)
	return child, nil
}

// crossMounts follows d.MountRoot transparently, as spec.md §4.8 requires
// ("resolving into a mounted directory transparently continues into the
// mounted filesystem's root").
func crossMounts(d *Dentry) *Dentry {
	for d.MountRoot != nil {
		d = d.MountRoot
	}
	return d
}

// splitPath tokenizes a path into its non-empty components.
func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	parts := raw[:0]
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
