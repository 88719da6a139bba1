package documents

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/shared"
)

var (
	admin   = shared.Principal{ID: "u-admin", Role: shared.RoleAdmin}
	manager = shared.Principal{ID: "u-mgr", Role: shared.RoleManager}
	debtor  = shared.Principal{ID: "u-client", Role: shared.RoleClient}
)

func strptr(s string) *string { return &s }

type memoryDocRepo struct {
	docs   map[string]*Document
	nextID int
}

func newMemoryDocRepo() *memoryDocRepo {
	return &memoryDocRepo{docs: make(map[string]*Document)}
}

func (r *memoryDocRepo) Create(_ context.Context, input CreateDocumentInput) (*Document, error) {
	r.nextID++
	d := &Document{
		ID:         "d" + strconv.Itoa(r.nextID),
		ClientID:   input.ClientID,
		InvoiceID:  input.InvoiceID,
		Name:       input.Name,
		Type:       input.Type,
		Path:       input.Path,
		Size:       input.Size,
		UploadedBy: input.UploadedBy,
	}
	r.docs[d.ID] = d
	return d, nil
}

func (r *memoryDocRepo) Get(_ context.Context, id string) (*Document, error) {
	d, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (r *memoryDocRepo) List(_ context.Context, filter ListFilter) ([]Document, error) {
	var out []Document
	for _, d := range r.docs {
		if filter.ClientID != "" && d.ClientID != filter.ClientID {
			continue
		}
		if len(filter.ClientIDs) > 0 && !containsID(filter.ClientIDs, d.ClientID) {
			continue
		}
		if filter.Type != "" && d.Type != filter.Type {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (r *memoryDocRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type memoryDirectory struct {
	clients map[string]*clients.Client
}

func newMemoryDirectory(cs ...clients.Client) *memoryDirectory {
	d := &memoryDirectory{clients: make(map[string]*clients.Client)}
	for i := range cs {
		d.clients[cs[i].ID] = &cs[i]
	}
	return d
}

func (d *memoryDirectory) Get(_ context.Context, id string) (*clients.Client, error) {
	c, ok := d.clients[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	return c, nil
}

func (d *memoryDirectory) List(context.Context, clients.ListFilter) ([]clients.Client, error) {
	var out []clients.Client
	for _, c := range d.clients {
		out = append(out, *c)
	}
	return out, nil
}

func TestRegisterDefaultsUploader(t *testing.T) {
	dir := newMemoryDirectory(clients.Client{ID: "c1", ManagerID: strptr("u-mgr")})
	svc := NewService(newMemoryDocRepo(), dir, nil)

	doc, err := svc.Register(context.Background(), manager, CreateDocumentInput{
		ClientID: "c1",
		Name:     "contrat-2026.pdf",
		Type:     TypeContract,
		Path:     "clients/c1/contrat-2026.pdf",
		Size:     48213,
	})
	require.NoError(t, err)
	require.NotNil(t, doc.UploadedBy)
	require.Equal(t, "u-mgr", *doc.UploadedBy)
}

func TestRegisterRejectsDebtorAndBadInput(t *testing.T) {
	dir := newMemoryDirectory(clients.Client{ID: "c1"})
	svc := NewService(newMemoryDocRepo(), dir, nil)

	_, err := svc.Register(context.Background(), debtor, CreateDocumentInput{ClientID: "c1", Name: "x", Type: TypeOther, Path: "p"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Register(context.Background(), admin, CreateDocumentInput{ClientID: "c1", Name: "x", Type: "spreadsheet", Path: "p"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Register(context.Background(), admin, CreateDocumentInput{ClientID: "c1", Name: "x", Type: TypeOther})
	require.ErrorIs(t, err, shared.ErrValidation, "path is required")
}

func TestGetAndListScopeToVisibleClients(t *testing.T) {
	dir := newMemoryDirectory(
		clients.Client{ID: "c1", ManagerID: strptr("u-mgr"), UserID: strptr("u-client")},
		clients.Client{ID: "c2", ManagerID: strptr("someone-else")},
	)
	repo := newMemoryDocRepo()
	svc := NewService(repo, dir, nil)

	mineDoc, err := svc.Register(context.Background(), admin, CreateDocumentInput{ClientID: "c1", Name: "a", Type: TypeOther, Path: "p1"})
	require.NoError(t, err)
	otherDoc, err := svc.Register(context.Background(), admin, CreateDocumentInput{ClientID: "c2", Name: "b", Type: TypeOther, Path: "p2"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), manager, otherDoc.ID)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := svc.Get(context.Background(), debtor, mineDoc.ID)
	require.NoError(t, err)
	require.Equal(t, mineDoc.ID, got.ID, "debtors can read their own file records")

	list, err := svc.List(context.Background(), manager, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "c1", list[0].ClientID)
}

func TestDeleteRequiresStaffRole(t *testing.T) {
	dir := newMemoryDirectory(clients.Client{ID: "c1", UserID: strptr("u-client")})
	repo := newMemoryDocRepo()
	svc := NewService(repo, dir, nil)

	doc, err := svc.Register(context.Background(), admin, CreateDocumentInput{ClientID: "c1", Name: "a", Type: TypeOther, Path: "p"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), debtor, doc.ID), shared.ErrForbidden)
	require.NoError(t, svc.Delete(context.Background(), admin, doc.ID))
	require.Empty(t, repo.docs)
}
