package cache

import (
	"context"
)

// EquivalenceResolver answers "which post on child blog X corresponds to
// parent post (B, P)?" by consulting the parent's broadcast data, memoized
// on the full (parent blog, parent post, child blog) triple. The memo is a
// separate layer from BroadcastCache and shares its unit-of-work lifetime.
type EquivalenceResolver struct {
	cache *BroadcastCache
	// parent blog -> parent post -> child blog -> child post
	memo map[int64]map[int64]map[int64]int64
}

func NewEquivalenceResolver(cache *BroadcastCache) *EquivalenceResolver {
	return &EquivalenceResolver{cache: cache, memo: map[int64]map[int64]map[int64]int64{}}
}

// Get resolves the child post id for the triple, or ok=false when the parent
// has no child on that blog. Absence is not an error.
func (r *EquivalenceResolver) Get(ctx context.Context, parentBlog, parentPost, childBlog int64) (int64, bool, error) {
	if byPost, ok := r.memo[parentBlog]; ok {
		if byChild, ok := byPost[parentPost]; ok {
			if childPost, ok := byChild[childBlog]; ok {
				return childPost, true, nil
			}
		}
	}
	bd, err := r.cache.GetFor(ctx, parentBlog, parentPost)
	if err != nil {
		return 0, false, err
	}
	childPost, ok := bd.LinkedChildOnBlog(childBlog)
	if !ok {
		return 0, false, nil
	}
	r.Set(parentBlog, parentPost, childBlog, childPost)
	return childPost, true, nil
}

// Set memoizes a resolved triple. First write wins: a value confirmed earlier
// in this unit of work is never clobbered by a later, possibly stale, lookup.
func (r *EquivalenceResolver) Set(parentBlog, parentPost, childBlog, childPost int64) {
	byPost, ok := r.memo[parentBlog]
	if !ok {
		byPost = map[int64]map[int64]int64{}
		r.memo[parentBlog] = byPost
	}
	byChild, ok := byPost[parentPost]
	if !ok {
		byChild = map[int64]int64{}
		byPost[parentPost] = byChild
	}
	if _, exists := byChild[childBlog]; exists {
		return
	}
	byChild[childBlog] = childPost
}
