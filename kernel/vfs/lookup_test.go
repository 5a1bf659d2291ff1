package vfs

import "testing"

func newLookupFixture(t *testing.T) (*Dentry, ResolveContext) {
	fs := NewMemFS()
	root := NewDentry("", fs.RootInode(), nil)
	ctx := ResolveContext{Root: root, Cwd: root}

	sub, err := fs.RootInode().Mkdir("sub", 0755)
	if err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := sub.Inode.Create("leaf.txt", TypeRegular, 0644); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return root, ctx
}

func TestResolveAbsolutePath(t *testing.T) {
	_, ctx := newLookupFixture(t)

	d, err := Resolve(ctx, "/sub/leaf.txt", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	meta, merr := d.Inode.Metadata()
	if merr != nil || meta.Type != TypeRegular {
		t.Fatalf("resolved to wrong inode: meta=%+v err=%v", meta, merr)
	}
}

func TestResolveDotDotWalksUpToParent(t *testing.T) {
	_, ctx := newLookupFixture(t)

	sub, err := Resolve(ctx, "/sub", false)
	if err != nil {
		t.Fatalf("Resolve /sub: %v", err)
	}
	subCtx := ResolveContext{Root: ctx.Root, Cwd: sub}

	d, err := Resolve(subCtx, "../sub/leaf.txt", false)
	if err != nil {
		t.Fatalf("Resolve with ..: %v", err)
	}
	if d.Name != "leaf.txt" {
		t.Fatalf("resolved dentry name = %q, want leaf.txt", d.Name)
	}
}

func TestResolveMissingComponentFails(t *testing.T) {
	_, ctx := newLookupFixture(t)
	if _, err := Resolve(ctx, "/sub/missing.txt", false); err == nil {
		t.Fatal("Resolve of a missing path should fail")
	}
}

func TestResolveFollowsSymlink(t *testing.T) {
	root, ctx := newLookupFixture(t)
	if _, err := root.Inode.Symlink("link", "/sub/leaf.txt"); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	d, err := Resolve(ctx, "/link", false)
	if err != nil {
		t.Fatalf("Resolve through symlink: %v", err)
	}
	if d.Name != "leaf.txt" {
		t.Fatalf("resolved dentry name = %q, want leaf.txt", d.Name)
	}
}

func TestResolveNofollowStopsAtSymlink(t *testing.T) {
	root, ctx := newLookupFixture(t)
	root.Inode.Symlink("link", "/sub/leaf.txt")

	d, err := Resolve(ctx, "/link", true)
	if err != nil {
		t.Fatalf("Resolve nofollow: %v", err)
	}
	meta, merr := d.Inode.Metadata()
	if merr != nil || meta.Type != TypeSymlink {
		t.Fatalf("nofollow resolve should stop at the symlink itself, got type %v", meta.Type)
	}
}

func TestResolveDetectsSymlinkLoop(t *testing.T) {
	root, ctx := newLookupFixture(t)
	root.Inode.Symlink("a", "/b")
	root.Inode.Symlink("b", "/a")

	if _, err := Resolve(ctx, "/a", false); err == nil {
		t.Fatal("Resolve should detect a symlink loop")
	}
}
