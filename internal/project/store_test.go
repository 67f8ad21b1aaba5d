package project

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAssignsIDAndRoundTrips(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, Project{
		Name:         "Quarterly Report",
		DocumentPath: "/data/doc_1.pdf",
		Markdown:     "# Q1",
		LastModified: time.UnixMilli(1700000000000),
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Quarterly Report", got.Name)
	require.Equal(t, "/data/doc_1.pdf", got.DocumentPath)
	require.Equal(t, "# Q1", got.Markdown)
	require.Equal(t, int64(1700000000000), got.LastModified.UnixMilli())
	require.True(t, got.Saved())
}

func TestGetMissingReturnsNil(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	got, err := s.Get(context.Background(), 999)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestListOrdersByLastModifiedDescending(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	older, err := s.Insert(ctx, Project{Name: "older", LastModified: time.UnixMilli(1000)})
	require.NoError(t, err)
	newer, err := s.Insert(ctx, Project{Name: "newer", LastModified: time.UnixMilli(2000)})
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer, list[0].ID)
	require.Equal(t, older, list[1].ID)
}

func TestUpdateRewritesRecordInPlace(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, Project{Name: "draft", Markdown: "v1", LastModified: time.UnixMilli(1000)})
	require.NoError(t, err)

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	p.Markdown = "v2"
	p.LastModified = time.UnixMilli(2000)
	require.NoError(t, s.Update(ctx, *p))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "v2", got.Markdown)
	require.Equal(t, int64(2000), got.LastModified.UnixMilli())

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestDeleteRemovesOnlyTheRecord(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, Project{Name: "temp"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestWatchDeliversInitialAndMutationSnapshots(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Watch(ctx)
	initial := receiveList(t, ch)
	require.Empty(t, initial)

	id, err := s.Insert(ctx, Project{Name: "watched"})
	require.NoError(t, err)

	next := receiveList(t, ch)
	require.Len(t, next, 1)
	require.Equal(t, id, next[0].ID)

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}

func receiveList(t *testing.T, ch <-chan []Project) []Project {
	t.Helper()
	select {
	case list := <-ch:
		return list
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch update")
		return nil
	}
}
