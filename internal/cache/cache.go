package cache

import (
	"context"

	"github.com/d60-Lab/broadcast-link/internal/linkdata"
	"github.com/d60-Lab/broadcast-link/internal/repository"
)

type pairKey struct {
	blogID int64
	postID int64
}

// BroadcastCache memoizes broadcast-data lookups for one unit of work
// (a single request or one maintenance step). Repeated GetFor calls for the
// same (blog, post) return the same instance, so in-place edits made through
// one lookup are visible through every later lookup without a re-fetch.
//
// Construct one per request and pass it explicitly; never share across
// requests. There is no eviction — the cache dies with the unit of work.
type BroadcastCache struct {
	repo    repository.BroadcastRepository
	entries map[pairKey]*linkdata.BroadcastData

	// expected holds post ids armed by ExpectPosts, per blog. The next miss
	// on that blog triggers one GetMany for the whole set instead of N
	// single-row reads.
	expected map[int64][]int64
}

func NewBroadcastCache(repo repository.BroadcastRepository) *BroadcastCache {
	return &BroadcastCache{
		repo:     repo,
		entries:  map[pairKey]*linkdata.BroadcastData{},
		expected: map[int64][]int64{},
	}
}

// ExpectPosts arms a one-shot bulk preload: the next GetFor miss on blogID
// loads all the given posts in a single batch query. Used by listing pages
// where every rendered row needs its broadcast status.
func (c *BroadcastCache) ExpectPosts(blogID int64, postIDs []int64) {
	if len(postIDs) == 0 {
		return
	}
	c.expected[blogID] = append(c.expected[blogID], postIDs...)
}

// GetFor returns the cached record for (blogID, postID), loading it on miss.
// Posts with no stored row get a fresh empty record, which is cached too, so
// callers can mutate it and flush through the repository afterwards.
func (c *BroadcastCache) GetFor(ctx context.Context, blogID, postID int64) (*linkdata.BroadcastData, error) {
	key := pairKey{blogID, postID}
	if bd, ok := c.entries[key]; ok {
		return bd, nil
	}
	if pending, ok := c.expected[blogID]; ok {
		delete(c.expected, blogID)
		loaded, corrupt, err := c.repo.GetMany(ctx, blogID, pending)
		if err != nil {
			return nil, err
		}
		// Corrupt rows stay uncached; a direct lookup then surfaces the
		// decode error instead of faking an empty record.
		skip := make(map[int64]bool, len(corrupt))
		for _, id := range corrupt {
			skip[id] = true
		}
		for _, id := range pending {
			k := pairKey{blogID, id}
			if skip[id] {
				continue
			}
			if _, ok := c.entries[k]; ok {
				continue
			}
			if bd, ok := loaded[id]; ok {
				c.entries[k] = bd
			} else {
				c.entries[k] = linkdata.New()
			}
		}
		if bd, ok := c.entries[key]; ok {
			return bd, nil
		}
	}
	bd, err := c.repo.Get(ctx, blogID, postID)
	if err != nil {
		return nil, err
	}
	c.entries[key] = bd
	return bd, nil
}

// SetFor seeds or overwrites the cache entry directly, e.g. after a post's
// data row was deleted and replaced with a fresh record.
func (c *BroadcastCache) SetFor(blogID, postID int64, bd *linkdata.BroadcastData) {
	c.entries[pairKey{blogID, postID}] = bd
}
