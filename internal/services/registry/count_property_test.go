package registry_test

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/mcoot/islandrelay/internal/dependencies/mocks"
	"github.com/mcoot/islandrelay/internal/model"
	"github.com/mcoot/islandrelay/internal/services/reaper"
	"github.com/mcoot/islandrelay/internal/services/registry"
	"github.com/mcoot/islandrelay/internal/storage/memory"
	"github.com/mcoot/islandrelay/internal/testutil"
)

// Count equals logins minus disconnects minus idle evictions after every operation
func TestCountMatchesLoginsMinusRemovalsAndEvictions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		clock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
		r := registry.New(memory.New(), clock, model.DefaultSpawn)
		rp := reaper.New(r, clock, reaper.DefaultTimeout, reaper.DefaultInterval, testutil.NopLogger())

		// live tracks each registered id's last activity
		live := map[model.ConnectionID]time.Time{}

		numOps := rapid.IntRange(0, 100).Draw(t, "num_ops")
		for i := 0; i < numOps; i++ {
			id := model.ConnectionID(fmt.Sprintf("c%d", rapid.IntRange(0, 9).Draw(t, "id")))
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				_, err := r.Insert(ctx, id, "p", "🧚‍♀️")
				if _, ok := live[id]; ok {
					if err == nil {
						t.Fatalf("duplicate insert of %s succeeded", id)
					}
				} else {
					if err != nil {
						t.Fatalf("insert %s: %v", id, err)
					}
					live[id] = clock.Now()
				}
			case 1:
				ok, err := r.UpdatePosition(ctx, id, 1, 1)
				_, want := live[id]
				if err != nil || ok != want {
					t.Fatalf("move %s: ok=%v err=%v live=%v", id, ok, err, want)
				}
				if ok {
					live[id] = clock.Now()
				}
			case 2:
				_, ok, err := r.Remove(ctx, id)
				_, want := live[id]
				if err != nil || ok != want {
					t.Fatalf("remove %s: ok=%v err=%v live=%v", id, ok, err, want)
				}
				delete(live, id)
			case 3:
				clock.Advance(time.Duration(rapid.IntRange(0, 240).Draw(t, "advance_s")) * time.Second)
			case 4:
				batch, err := rp.Sweep(ctx)
				if err != nil {
					t.Fatalf("sweep: %v", err)
				}

				var want, got []string
				now := clock.Now()
				for lid, last := range live {
					if now.Sub(last) > reaper.DefaultTimeout {
						want = append(want, string(lid))
						delete(live, lid)
					}
				}
				for _, out := range batch {
					got = append(got, out.Payload.(string))
				}
				sort.Strings(want)
				sort.Strings(got)
				if fmt.Sprint(want) != fmt.Sprint(got) {
					t.Fatalf("sweep evicted %v, want %v", got, want)
				}
			}

			count, err := r.Count(ctx)
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if count != len(live) {
				t.Fatalf("after op %d: count %d, want %d", i, count, len(live))
			}
		}
	})
}
