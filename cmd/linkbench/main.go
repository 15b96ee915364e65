package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/broadcast-link/internal/cache"
	"github.com/d60-Lab/broadcast-link/internal/linkdata"
	"github.com/d60-Lab/broadcast-link/internal/model"
	"github.com/d60-Lab/broadcast-link/internal/repository"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}

// linkbench: compares per-row reads vs. the request cache's bulk preload for
// a listing page of N posts, each with a stored broadcast-data row.
//
//	N=2000 PAGE=50 go run ./cmd/linkbench
func main() {
	ctx := context.Background()

	N := 2000
	if s := os.Getenv("N"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			N = n
		}
	}
	PAGE := 50
	if s := os.Getenv("PAGE"); s != "" {
		if p, err := strconv.Atoi(s); err == nil && p > 0 {
			PAGE = p
		}
	}

	db := must(gorm.Open(sqlite.Open(":memory:"), &gorm.Config{}))
	mustDo(db.AutoMigrate(&model.Post{}, &model.PostMeta{}, &model.BroadcastRow{}))

	repo := repository.NewBroadcastRepository(db)

	// seed: parent blog 1 posts, each linked to one child on blog 2
	const parentBlog, childBlog = 1, 2
	ids := make([]int64, 0, N)
	for i := 0; i < N; i++ {
		post := model.Post{BlogID: parentBlog, Title: fmt.Sprintf("post %d", i), Status: model.PostStatusPublish}
		mustDo(db.Create(&post).Error)
		bd := linkdata.New()
		bd.AddLinkedChild(childBlog, int64(i+1))
		mustDo(repo.Put(ctx, parentBlog, post.ID, bd))
		ids = append(ids, post.ID)
	}

	pages := len(ids) / PAGE

	// one-by-one reads, fresh cache per page (N+1 pattern)
	singleLat := make([]time.Duration, 0, pages)
	for p := 0; p < pages; p++ {
		cc := cache.NewBroadcastCache(repo)
		st := time.Now()
		for _, id := range ids[p*PAGE : (p+1)*PAGE] {
			_ = must(cc.GetFor(ctx, parentBlog, id))
		}
		singleLat = append(singleLat, time.Since(st))
	}

	// bulk preload per page
	bulkLat := make([]time.Duration, 0, pages)
	for p := 0; p < pages; p++ {
		cc := cache.NewBroadcastCache(repo)
		pageIDs := ids[p*PAGE : (p+1)*PAGE]
		st := time.Now()
		cc.ExpectPosts(parentBlog, pageIDs)
		for _, id := range pageIDs {
			_ = must(cc.GetFor(ctx, parentBlog, id))
		}
		bulkLat = append(bulkLat, time.Since(st))
	}

	fmt.Printf("linkbench: N=%d PAGE=%d pages=%d\n", N, PAGE, pages)
	report("single-row reads", singleLat)
	report("bulk preload    ", bulkLat)
}

func report(name string, lat []time.Duration) {
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	var total time.Duration
	for _, d := range lat {
		total += d
	}
	fmt.Printf("%s avg=%v p50=%v p99=%v\n",
		name, total/time.Duration(len(lat)), pct(lat, 0.50), pct(lat, 0.99))
}

func pct(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * q)
	return sorted[idx]
}
