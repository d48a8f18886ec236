package reminder

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"remindbot/pkg/logx"
)

// Both drivers must satisfy the same contract; every subtest runs against
// each of them.
func withStores(t *testing.T, fn func(t *testing.T, st Store)) {
	t.Helper()
	drivers := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{
			name: "memory",
			open: func(t *testing.T) Store { return NewMemoryStore() },
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Store {
				st, err := OpenStore(StoreConfig{
					Driver:      "sqlite",
					Path:        filepath.Join(t.TempDir(), "reminders.db"),
					BusyTimeout: 2 * time.Second,
				}, logx.Nop())
				if err != nil {
					t.Fatalf("OpenStore: %v", err)
				}
				return st
			},
		},
	}
	for _, d := range drivers {
		d := d
		t.Run(d.name, func(t *testing.T) {
			st := d.open(t)
			t.Cleanup(func() { _ = st.Close() })
			fn(t, st)
		})
	}
}

func seed(t *testing.T, st Store, r Record) Record {
	t.Helper()
	if err := st.Create(context.Background(), &r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return r
}

func TestStoreCreateAndGet(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		at := time.Date(2025, 12, 28, 15, 30, 0, 0, time.UTC)
		rec := seed(t, st, Record{
			ChatID:       42,
			Title:        "dentist",
			Payload:      "bring insurance card",
			Kind:         KindNote,
			TriggerAt:    at,
			RemindBefore: 10 * time.Minute,
			CreatedAt:    at.Add(-time.Hour),
		})
		if rec.ID == 0 {
			t.Fatal("Create did not assign an ID")
		}

		got, err := st.Get(ctx, rec.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !got.TriggerAt.Equal(at) {
			t.Fatalf("TriggerAt = %v, want %v", got.TriggerAt, at)
		}
		if got.TriggerAt.Location() != time.UTC {
			t.Fatalf("TriggerAt stored in %v, want UTC", got.TriggerAt.Location())
		}
		if got.IsTriggered || got.TriggeredAt != nil {
			t.Fatalf("fresh record already triggered: %+v", got)
		}
		if got.Title != "dentist" || got.Payload != "bring insurance card" {
			t.Fatalf("payload mangled: %+v", got)
		}
		if got.RemindBefore != 10*time.Minute {
			t.Fatalf("RemindBefore = %v", got.RemindBefore)
		}

		if _, err := st.Get(ctx, 9999); err != ErrNotFound {
			t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
		}
	})
}

func TestStoreDueSelection(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		past := seed(t, st, Record{ChatID: 1, Title: "past", TriggerAt: now.Add(-time.Minute)})
		exact := seed(t, st, Record{ChatID: 1, Title: "exact", TriggerAt: now})
		_ = seed(t, st, Record{ChatID: 1, Title: "future", TriggerAt: now.Add(time.Minute)})

		due, err := st.Due(ctx, now)
		if err != nil {
			t.Fatalf("Due: %v", err)
		}
		ids := map[int64]bool{}
		for _, r := range due {
			ids[r.ID] = true
		}
		if len(due) != 2 || !ids[past.ID] || !ids[exact.ID] {
			t.Fatalf("Due returned %+v, want past+exact", due)
		}

		// Claimed records drop out of the due set.
		if ok, err := st.Claim(ctx, past.ID, now); err != nil || !ok {
			t.Fatalf("Claim: ok=%v err=%v", ok, err)
		}
		due, err = st.Due(ctx, now)
		if err != nil {
			t.Fatalf("Due: %v", err)
		}
		if len(due) != 1 || due[0].ID != exact.ID {
			t.Fatalf("Due after claim = %+v", due)
		}
	})
}

func TestStoreClaimOnce(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		rec := seed(t, st, Record{ChatID: 1, Title: "x", TriggerAt: now.Add(-time.Second)})

		ok, err := st.Claim(ctx, rec.ID, now)
		if err != nil || !ok {
			t.Fatalf("first Claim: ok=%v err=%v", ok, err)
		}
		ok, err = st.Claim(ctx, rec.ID, now.Add(time.Second))
		if err != nil {
			t.Fatalf("second Claim: %v", err)
		}
		if ok {
			t.Fatal("second Claim won; is_triggered is not monotonic")
		}

		got, err := st.Get(ctx, rec.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !got.IsTriggered || got.TriggeredAt == nil {
			t.Fatalf("claimed record state: %+v", got)
		}
		if !got.TriggeredAt.Equal(now) {
			t.Fatalf("TriggeredAt = %v, want %v (first claim's instant)", got.TriggeredAt, now)
		}
	})
}

func TestStoreClaimConcurrent(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		rec := seed(t, st, Record{ChatID: 1, Title: "contended", TriggerAt: now.Add(-time.Second)})

		const workers = 16
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				ok, err := st.Claim(ctx, rec.ID, now)
				if err != nil {
					t.Errorf("Claim: %v", err)
					return
				}
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		close(start)
		wg.Wait()

		if wins != 1 {
			t.Fatalf("claim wins = %d, want exactly 1", wins)
		}
	})
}

func TestStoreLeadDue(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		// Heads-up window open: fires in 5m with a 10m lead.
		inWindow := seed(t, st, Record{
			ChatID: 1, Title: "soon",
			TriggerAt: now.Add(5 * time.Minute), RemindBefore: 10 * time.Minute,
		})
		// Window not open yet.
		_ = seed(t, st, Record{
			ChatID: 1, Title: "later",
			TriggerAt: now.Add(time.Hour), RemindBefore: 10 * time.Minute,
		})
		// No lead configured.
		_ = seed(t, st, Record{
			ChatID: 1, Title: "no lead",
			TriggerAt: now.Add(5 * time.Minute),
		})
		// Main trigger already due: the final notification supersedes the lead.
		_ = seed(t, st, Record{
			ChatID: 1, Title: "overdue",
			TriggerAt: now.Add(-time.Minute), RemindBefore: 10 * time.Minute,
		})

		due, err := st.LeadDue(ctx, now)
		if err != nil {
			t.Fatalf("LeadDue: %v", err)
		}
		if len(due) != 1 || due[0].ID != inWindow.ID {
			t.Fatalf("LeadDue = %+v, want only %d", due, inWindow.ID)
		}

		ok, err := st.ClaimLead(ctx, inWindow.ID)
		if err != nil || !ok {
			t.Fatalf("ClaimLead: ok=%v err=%v", ok, err)
		}
		ok, err = st.ClaimLead(ctx, inWindow.ID)
		if err != nil {
			t.Fatalf("second ClaimLead: %v", err)
		}
		if ok {
			t.Fatal("lead claimed twice")
		}

		due, err = st.LeadDue(ctx, now)
		if err != nil {
			t.Fatalf("LeadDue: %v", err)
		}
		if len(due) != 0 {
			t.Fatalf("LeadDue after claim = %+v", due)
		}
	})
}

func TestStoreListPendingAndDelete(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		b := seed(t, st, Record{ChatID: 7, Title: "b", TriggerAt: now.Add(2 * time.Hour)})
		a := seed(t, st, Record{ChatID: 7, Title: "a", TriggerAt: now.Add(time.Hour)})
		_ = seed(t, st, Record{ChatID: 8, Title: "other chat", TriggerAt: now.Add(time.Hour)})
		claimed := seed(t, st, Record{ChatID: 7, Title: "claimed", TriggerAt: now.Add(-time.Hour)})
		if ok, err := st.Claim(ctx, claimed.ID, now); err != nil || !ok {
			t.Fatalf("Claim: ok=%v err=%v", ok, err)
		}

		got, err := st.ListPending(ctx, 7, now)
		if err != nil {
			t.Fatalf("ListPending: %v", err)
		}
		if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
			t.Fatalf("ListPending = %+v, want [a b]", got)
		}

		// Wrong owner cannot delete.
		if ok, _ := st.Delete(ctx, a.ID, 8); ok {
			t.Fatal("delete with wrong chat id succeeded")
		}
		// Claimed records cannot be deleted.
		if ok, _ := st.Delete(ctx, claimed.ID, 7); ok {
			t.Fatal("deleted a claimed record")
		}
		if ok, err := st.Delete(ctx, a.ID, 7); err != nil || !ok {
			t.Fatalf("Delete: ok=%v err=%v", ok, err)
		}
		got, err = st.ListPending(ctx, 7, now)
		if err != nil {
			t.Fatalf("ListPending: %v", err)
		}
		if len(got) != 1 || got[0].ID != b.ID {
			t.Fatalf("ListPending after delete = %+v", got)
		}
	})
}
