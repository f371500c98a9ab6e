package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/advisorly/reading-room/internal/domain"
)

func Test_Session_Snapshot_Roundtrip(t *testing.T) {
	req := require.New(t)
	m := NewMemoryStore()
	ctx := context.Background()

	session := domain.Session{
		ConnID: "c1",
		Identity: domain.Identity{
			UserID:   "u1",
			UserType: domain.UserTypeAdvisor,
			UserName: "Zora",
		},
		Authenticated: true,
	}
	req.NoError(m.SaveSession(ctx, "r1", session))

	loaded, err := m.LoadSession(ctx, "r1", "c1")
	req.NoError(err)
	req.NotNil(loaded)
	req.Equal(session, *loaded)

	req.NoError(m.DeleteSession(ctx, "r1", "c1"))
	loaded, err = m.LoadSession(ctx, "r1", "c1")
	req.NoError(err)
	req.Nil(loaded)
}

func Test_Missing_Snapshot_Is_Nil(t *testing.T) {
	req := require.New(t)
	m := NewMemoryStore()

	loaded, err := m.LoadSession(context.Background(), "r1", "nope")
	req.NoError(err)
	req.Nil(loaded)

	rc, err := m.LoadContext(context.Background(), "r1")
	req.NoError(err)
	req.Nil(rc)
}

func Test_Context_Roundtrip(t *testing.T) {
	req := require.New(t)
	m := NewMemoryStore()
	ctx := context.Background()

	rc := domain.RoomContext{RoomID: "r1", ClientID: "u1", BoundAtMillis: 42}
	req.NoError(m.SaveContext(ctx, "r1", rc))

	loaded, err := m.LoadContext(ctx, "r1")
	req.NoError(err)
	req.NotNil(loaded)
	req.Equal(rc, *loaded)
}

func Test_Clear_Drops_Room_State_Only(t *testing.T) {
	req := require.New(t)
	m := NewMemoryStore()
	ctx := context.Background()

	req.NoError(m.SaveSession(ctx, "r1", domain.Session{ConnID: "c1"}))
	req.NoError(m.SaveSession(ctx, "r2", domain.Session{ConnID: "c2"}))
	req.NoError(m.SaveContext(ctx, "r1", domain.RoomContext{RoomID: "r1", BoundAtMillis: 1}))

	req.NoError(m.Clear(ctx, "r1"))

	s1, err := m.LoadSession(ctx, "r1", "c1")
	req.NoError(err)
	req.Nil(s1)
	rc, err := m.LoadContext(ctx, "r1")
	req.NoError(err)
	req.Nil(rc)

	s2, err := m.LoadSession(ctx, "r2", "c2")
	req.NoError(err)
	req.NotNil(s2)
}
