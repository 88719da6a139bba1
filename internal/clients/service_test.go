package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recouvra/recouvra/internal/shared"
)

type memoryClientRepo struct {
	clients map[string]*Client
	nextID  int
}

func newMemoryClientRepo() *memoryClientRepo {
	return &memoryClientRepo{clients: make(map[string]*Client)}
}

func (r *memoryClientRepo) add(c Client) *Client {
	r.clients[c.ID] = &c
	return &c
}

func (r *memoryClientRepo) Create(_ context.Context, input CreateClientInput) (*Client, error) {
	r.nextID++
	status := input.Status
	if status == "" {
		status = StatusBlue
	}
	c := &Client{
		ID:        string(rune('a' + r.nextID)),
		Name:      input.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		Company:   input.Company,
		ManagerID: input.ManagerID,
		UserID:    input.UserID,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.clients[c.ID] = c
	return c, nil
}

func (r *memoryClientRepo) Get(_ context.Context, id string) (*Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (r *memoryClientRepo) List(_ context.Context, filter ListFilter) ([]Client, error) {
	var out []Client
	for _, c := range r.clients {
		if filter.ManagerID != "" && (c.ManagerID == nil || *c.ManagerID != filter.ManagerID) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *memoryClientRepo) Update(_ context.Context, id string, input UpdateClientInput) (*Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	if input.Name != nil {
		c.Name = *input.Name
	}
	if input.Email != nil {
		c.Email = *input.Email
	}
	if input.Status != nil {
		c.Status = *input.Status
	}
	return c, nil
}

func (r *memoryClientRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	c, ok := r.clients[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func (r *memoryClientRepo) RefreshTotal(context.Context, string) error { return nil }

func (r *memoryClientRepo) TouchLastContact(_ context.Context, id string, at time.Time) error {
	c, ok := r.clients[id]
	if !ok {
		return ErrNotFound
	}
	c.LastContact = &at
	return nil
}

func (r *memoryClientRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.clients[id]; !ok {
		return ErrNotFound
	}
	delete(r.clients, id)
	return nil
}

var (
	admin    = shared.Principal{ID: "u-admin", Role: shared.RoleAdmin}
	manager  = shared.Principal{ID: "u-mgr", Role: shared.RoleManager}
	manager2 = shared.Principal{ID: "u-mgr2", Role: shared.RoleManager}
	debtor   = shared.Principal{ID: "u-client", Email: "debtor@example.com", Role: shared.RoleClient}
)

func strptr(s string) *string { return &s }

func TestVisibleTo(t *testing.T) {
	c := Client{ID: "c1", Email: "debtor@example.com", ManagerID: strptr("u-mgr"), UserID: strptr("u-client")}

	require.True(t, c.VisibleTo(admin))
	require.True(t, c.VisibleTo(manager))
	require.False(t, c.VisibleTo(manager2), "managers only see their own portfolio")
	require.True(t, c.VisibleTo(debtor), "matched on user_id")

	// An unlinked portal account still matches on email.
	byEmail := Client{ID: "c2", Email: "debtor@example.com"}
	require.True(t, byEmail.VisibleTo(debtor))
	require.False(t, Client{ID: "c3", Email: "other@example.com"}.VisibleTo(debtor))
}

func TestListScopesByRole(t *testing.T) {
	repo := newMemoryClientRepo()
	repo.add(Client{ID: "c1", Email: "a@example.com", ManagerID: strptr("u-mgr")})
	repo.add(Client{ID: "c2", Email: "b@example.com", ManagerID: strptr("u-mgr2")})
	repo.add(Client{ID: "c3", Email: "debtor@example.com"})
	svc := NewService(repo, nil)

	all, err := svc.List(context.Background(), admin, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	mine, err := svc.List(context.Background(), manager, ListFilter{ManagerID: "u-mgr2"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "c1", mine[0].ID, "a manager cannot widen the filter to another portfolio")

	own, err := svc.List(context.Background(), debtor, ListFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, "c3", own[0].ID)
}

func TestGetInvisibleReadsAsNotFound(t *testing.T) {
	repo := newMemoryClientRepo()
	repo.add(Client{ID: "c1", Email: "a@example.com", ManagerID: strptr("u-mgr")})
	svc := NewService(repo, nil)

	_, err := svc.Get(context.Background(), manager2, "c1")
	require.ErrorIs(t, err, ErrNotFound)

	c, err := svc.Get(context.Background(), manager, "c1")
	require.NoError(t, err)
	require.Equal(t, "c1", c.ID)
}

func TestCreateAssignsManagerToSelf(t *testing.T) {
	repo := newMemoryClientRepo()
	svc := NewService(repo, nil)

	c, err := svc.Create(context.Background(), manager, CreateClientInput{Name: "X", Email: "x@example.com"})
	require.NoError(t, err)
	require.NotNil(t, c.ManagerID)
	require.Equal(t, "u-mgr", *c.ManagerID)
	require.Equal(t, StatusBlue, c.Status, "new clients start blue")

	_, err = svc.Create(context.Background(), debtor, CreateClientInput{Name: "Y", Email: "y@example.com"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateValidates(t *testing.T) {
	svc := NewService(newMemoryClientRepo(), nil)

	_, err := svc.Create(context.Background(), admin, CreateClientInput{Email: "x@example.com"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), admin, CreateClientInput{Name: "X", Email: "x@example.com", Status: "purple"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestChangeStatus(t *testing.T) {
	repo := newMemoryClientRepo()
	repo.add(Client{ID: "c1", Email: "a@example.com", ManagerID: strptr("u-mgr"), Status: StatusBlue})
	svc := NewService(repo, nil)

	require.NoError(t, svc.ChangeStatus(context.Background(), manager, "c1", StatusOrange))
	require.Equal(t, StatusOrange, repo.clients["c1"].Status)

	err := svc.ChangeStatus(context.Background(), manager, "c1", "violet")
	require.ErrorIs(t, err, shared.ErrValidation)

	err = svc.ChangeStatus(context.Background(), debtor, "c1", StatusBlue)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDeleteIsAdminOnly(t *testing.T) {
	repo := newMemoryClientRepo()
	repo.add(Client{ID: "c1", Email: "a@example.com"})
	svc := NewService(repo, nil)

	require.ErrorIs(t, svc.Delete(context.Background(), manager, "c1"), shared.ErrForbidden)
	require.NoError(t, svc.Delete(context.Background(), admin, "c1"))
	require.Empty(t, repo.clients)
}
