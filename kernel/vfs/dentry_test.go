package vfs

import "testing"

func TestDentryPathReconstruction(t *testing.T) {
	fs := NewMemFS()
	root := NewDentry("", fs.RootInode(), nil)
	sub := NewDentry("sub", fs.RootInode(), root)
	leaf := NewDentry("leaf.txt", fs.RootInode(), sub)

	if got := root.Path(); got != "/" {
		t.Fatalf("root.Path() = %q, want /", got)
	}
	if got := sub.Path(); got != "/sub" {
		t.Fatalf("sub.Path() = %q, want /sub", got)
	}
	if got := leaf.Path(); got != "/sub/leaf.txt" {
		t.Fatalf("leaf.Path() = %q, want /sub/leaf.txt", got)
	}
}

func TestDentryChildCache(t *testing.T) {
	fs := NewMemFS()
	parent := NewDentry("parent", fs.RootInode(), nil)
	child := NewDentry("child", fs.RootInode(), parent)

	if _, ok := parent.Child("child"); ok {
		t.Fatal("child should not be cached before CacheChild")
	}
	parent.CacheChild(child)
	got, ok := parent.Child("child")
	if !ok || got != child {
		t.Fatal("CacheChild did not make the child retrievable")
	}
	parent.Uncache("child")
	if _, ok := parent.Child("child"); ok {
		t.Fatal("Uncache should drop the cached child")
	}
}
