package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFeed replays a fixed sequence of pages and records every request.
type scriptedFeed struct {
	t        *testing.T
	pages    [][]int
	failOn   int // 1-based call number to fail on, 0 never
	failWith error
	requests []Request
}

func (s *scriptedFeed) fetch(_ context.Context, req Request) (Response[int], error) {
	s.requests = append(s.requests, req)
	call := len(s.requests)

	// Token threading: call i must carry the token issued by call i-1.
	want := ""
	if call > 1 {
		want = fmt.Sprintf("tok-%d", call-1)
	}
	if req.Continuation.Wire() != want {
		s.t.Errorf("call %d continuation = %q, want %q", call, req.Continuation.Wire(), want)
	}

	if call == s.failOn {
		return Response[int]{}, s.failWith
	}
	if call > len(s.pages) {
		s.t.Fatalf("unexpected fetch call %d", call)
	}

	resp := Response[int]{Items: s.pages[call-1]}
	if call < len(s.pages) {
		resp.Next = IssueToken(fmt.Sprintf("tok-%d", call))
	}
	return resp, nil
}

func TestDrain_SinglePage(t *testing.T) {
	f := &scriptedFeed{t: t, pages: [][]int{{1, 2, 3}}}

	items, err := GetItems(context.Background(), f.fetch)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, items)
	assert.Len(t, f.requests, 1)
	assert.True(t, f.requests[0].Continuation.IsEmpty())
	assert.Equal(t, DefaultPageSize, f.requests[0].MaxItemCount)
}

func TestDrain_MultiPageConcatenation(t *testing.T) {
	tests := []struct {
		name  string
		pages [][]int
		want  []int
	}{
		{
			name:  "two pages",
			pages: [][]int{{1, 2}, {3}},
			want:  []int{1, 2, 3},
		},
		{
			name:  "uneven pages",
			pages: [][]int{{1}, {2, 3, 4}, {5, 6}, {7}},
			want:  []int{1, 2, 3, 4, 5, 6, 7},
		},
		{
			name:  "empty page in the middle",
			pages: [][]int{{1}, {}, {2}},
			want:  []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFeed{t: t, pages: tt.pages}

			items, err := NewPager[int](Config{PageSize: 3}).Drain(context.Background(), f.fetch)
			require.NoError(t, err)

			assert.Equal(t, tt.want, items)
			assert.Len(t, f.requests, len(tt.pages))
			for _, req := range f.requests {
				assert.Equal(t, 3, req.MaxItemCount)
			}
		})
	}
}

func TestDrain_EmptyFeed(t *testing.T) {
	f := &scriptedFeed{t: t, pages: [][]int{{}}}

	items, err := GetItems(context.Background(), f.fetch)
	require.NoError(t, err)

	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Len(t, f.requests, 1)
}

func TestDrain_NilItemsWithoutToken(t *testing.T) {
	calls := 0
	items, err := GetItems(context.Background(), func(context.Context, Request) (Response[string], error) {
		calls++
		return Response[string]{}, nil
	})
	require.NoError(t, err)

	assert.Empty(t, items)
	assert.Equal(t, 1, calls)
}

func TestDrain_FailurePropagation(t *testing.T) {
	boom := errors.New("service unavailable")
	f := &scriptedFeed{
		t:        t,
		pages:    [][]int{{1, 2}, {3, 4}, {5}},
		failOn:   2,
		failWith: boom,
	}

	items, err := GetItems(context.Background(), f.fetch)

	assert.Same(t, boom, err)
	assert.Nil(t, items)
	assert.Len(t, f.requests, 2)
}

func TestDrain_MalformedResponse(t *testing.T) {
	items, err := GetItems(context.Background(), func(context.Context, Request) (Response[int], error) {
		return Response[int]{Next: IssueToken("next")}, nil
	})

	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Nil(t, items)
}

func TestDrain_MaxPages(t *testing.T) {
	calls := 0
	endless := func(context.Context, Request) (Response[int], error) {
		calls++
		return Response[int]{Items: []int{calls}, Next: IssueToken("again")}, nil
	}

	items, err := NewPager[int](Config{MaxPages: 5}).Drain(context.Background(), endless)

	assert.ErrorIs(t, err, ErrTooManyPages)
	assert.Nil(t, items)
	assert.Equal(t, 5, calls)
}

func TestDrain_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	items, err := GetItems(ctx, func(context.Context, Request) (Response[int], error) {
		calls++
		cancel()
		return Response[int]{Items: []int{1}, Next: IssueToken("more")}, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, items)
	assert.Equal(t, 1, calls)
}

func TestDrain_NoStateAcrossCalls(t *testing.T) {
	pager := NewPager[int](DefaultConfig())
	pages := [][]int{{1, 2}, {3}, {4, 5}}

	first, err := pager.Drain(context.Background(), (&scriptedFeed{t: t, pages: pages}).fetch)
	require.NoError(t, err)

	second, err := pager.Drain(context.Background(), (&scriptedFeed{t: t, pages: pages}).fetch)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, second)
}

func TestNewPager_Defaults(t *testing.T) {
	p := NewPager[int](Config{PageSize: -1, MaxPages: -3})

	assert.Equal(t, DefaultPageSize, p.config.PageSize)
	assert.Equal(t, 0, p.config.MaxPages)
}

func TestToken(t *testing.T) {
	var zero Token
	assert.True(t, zero.IsEmpty())
	assert.True(t, IssueToken("").IsEmpty())

	tok := IssueToken("+RID:abc#RT:1")
	assert.False(t, tok.IsEmpty())
	assert.Equal(t, "+RID:abc#RT:1", tok.Wire())
	assert.Equal(t, "<token>", tok.String())
	assert.Equal(t, "<none>", zero.String())
}

func TestToken_TextRoundTrip(t *testing.T) {
	tok := IssueToken("+RID:abc#RT:2")

	text, err := tok.MarshalText()
	require.NoError(t, err)

	var restored Token
	require.NoError(t, restored.UnmarshalText(text))
	assert.Equal(t, tok, restored)
}
