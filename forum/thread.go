package forum

import "github.com/rexlx/bookify/web"

// MaxGuideDepth is the deepest level that still gets an indent guide. Deeper
// replies are rendered all the same, only without the guide.
const MaxGuideDepth = 5

// Forest is the parent to children grouping of one topic's posts. Roots and
// every child list keep the order of the input.
type Forest struct {
	roots    []Post
	children map[int64][]Post
}

// Build partitions posts by parent in a single pass. A post whose parent is
// not in posts ends up in a bucket no root leads to, so it is never
// rendered.
func Build(posts []Post) *Forest {
	f := &Forest{children: make(map[int64][]Post)}
	for _, p := range posts {
		if p.ReplyTo == nil {
			f.roots = append(f.roots, p)
			continue
		}
		f.children[*p.ReplyTo] = append(f.children[*p.ReplyTo], p)
	}
	return f
}

// Roots returns the root posts in fetch order.
func (f *Forest) Roots() []Post {
	return f.roots
}

// ChildrenOf returns the direct replies to id in fetch order.
func (f *Forest) ChildrenOf(id int64) []Post {
	return f.children[id]
}

// Walk visits every post reachable from roots depth-first, parents before
// their replies. A post id is visited at most once, which keeps malformed
// input with repeated ids from looping.
func (f *Forest) Walk(roots []Post, fn func(p Post, depth int)) {
	type frame struct {
		post  Post
		depth int
	}
	seen := make(map[int64]bool)
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[top.post.ID] {
			continue
		}
		seen[top.post.ID] = true
		fn(top.post, top.depth)

		kids := f.children[top.post.ID]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], top.depth + 1})
		}
	}
}

// Reachable counts the posts a full render would show.
func (f *Forest) Reachable() int {
	n := 0
	f.Walk(f.roots, func(Post, int) { n++ })
	return n
}

// Node is one post of the render tree.
type Node struct {
	Post     Post
	Depth    int
	Guide    bool
	Children []*Node
}

// Nodes turns the given roots and all their descendants into a render tree.
func (f *Forest) Nodes(roots []Post) []*Node {
	var (
		out  []*Node
		path []*Node
	)
	f.Walk(roots, func(p Post, depth int) {
		n := &Node{Post: p, Depth: depth, Guide: depth > 0 && depth <= MaxGuideDepth}
		path = path[:depth]
		if depth == 0 {
			out = append(out, n)
		} else {
			parent := path[depth-1]
			parent.Children = append(parent.Children, n)
		}
		path = append(path, n)
	})
	return out
}

// PageRoots returns the roots on page with a fixed page size. Descendants
// are not paginated: every reply of a visible root stays on the same page.
func PageRoots(f *Forest, page, size int) ([]Post, web.Pagination) {
	if page < 1 {
		page = 1
	}
	total := len(f.roots)
	if size <= 0 {
		return f.roots, web.NewPagination(1, total, total)
	}
	// Anything past the end is one page after the last.
	if pages := (total + size - 1) / size; page > pages {
		return nil, web.NewPagination(pages+1, total, size)
	}
	pagination := web.NewPagination(page, total, size)
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	return f.roots[start:end], pagination
}
