package projection

import (
	"chat-relay/contract"
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"chat-relay/mocks"
	"fmt"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestClamp(t *testing.T) {
	req := require.New(t)

	cases := []struct {
		name     string
		limit    int
		expected int
	}{
		{"zero falls back to the default page", 0, DefaultLimit},
		{"negative falls back to the default page", -3, DefaultLimit},
		{"in range passes through", 25, 25},
		{"exactly the cap passes through", MaxLimit, MaxLimit},
		{"above the cap is capped", MaxLimit + 1, MaxLimit},
		{"absurdly large is capped", 1 << 30, MaxLimit},
	}

	for _, c := range cases {
		req.Equal(c.expected, Clamp(c.limit), c.name)
	}
}

func TestBacklog_Resolve_Clamps_Before_Querying(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repoMock := mocks.NewMockIMessageRepository(ctrl)

	stored := lo.Map(lo.Range(3), func(i int, _ int) domain.Message {
		return domain.Message{
			ID:        fmt.Sprintf("msg-%d", i),
			RoomID:    "general",
			Content:   "hello",
			Timestamp: int64(1700000000000 + i),
		}
	})

	// The store must receive the clamped limit, never the raw one
	repoMock.EXPECT().
		Query("general", contract.QueryOptions{Limit: MaxLimit}).
		Return(stored, nil, nil).
		Times(1)

	backlog := NewBacklog(repoMock)

	messages, cursor, err := backlog.Resolve("general", 9999, nil)
	req.NoError(err)
	req.Nil(cursor)
	req.Equal(stored, messages)
}

func TestBacklog_Resolve_Defaults_Missing_Limit(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repoMock := mocks.NewMockIMessageRepository(ctrl)

	repoMock.EXPECT().
		Query("general", contract.QueryOptions{Limit: DefaultLimit}).
		Return(nil, nil, nil).
		Times(1)

	backlog := NewBacklog(repoMock)

	messages, cursor, err := backlog.Resolve("general", 0, nil)
	req.NoError(err)
	req.Nil(cursor)
	req.Empty(messages)
}

func TestBacklog_Resolve_Forwards_Cursor(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repoMock := mocks.NewMockIMessageRepository(ctrl)

	cursor := lo.ToPtr("00000000000000000041")
	next := lo.ToPtr("00000000000000000027")
	repoMock.EXPECT().
		Query("general", contract.QueryOptions{Limit: 10, Cursor: cursor}).
		Return(nil, next, nil).
		Times(1)

	backlog := NewBacklog(repoMock)

	_, got, err := backlog.Resolve("general", 10, cursor)
	req.NoError(err)
	req.Equal(next, got)
}

func TestBacklog_Resolve_Propagates_Store_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repoMock := mocks.NewMockIMessageRepository(ctrl)

	repoMock.EXPECT().
		Query("general", gomock.Any()).
		Return(nil, nil, apperrors.ErrStorageUnavailable).
		Times(1)

	backlog := NewBacklog(repoMock)

	_, _, err := backlog.Resolve("general", 10, nil)
	req.ErrorIs(err, apperrors.ErrStorageUnavailable)
}
