package node

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
	"antbox-backend/internal/infrastructure/events"
	"antbox-backend/internal/infrastructure/persistence/memory"
	apperrors "antbox-backend/pkg/errors"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (r *eventRecorder) Handle(ctx context.Context, event domain.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Name() string { return "recorder" }

func (r *eventRecorder) byID(eventID string) []domain.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DomainEvent
	for _, e := range r.events {
		if e.EventID() == eventID {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc      Service
	nodes    *memory.NodeRepository
	binaries *memory.BinaryStore
	config   *memory.ConfigurationRepository
	recorder *eventRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger, nil)
	recorder := &eventRecorder{}
	for _, id := range []string{domain.EventNodeCreated, domain.EventNodeUpdated, domain.EventNodeDeleted} {
		require.NoError(t, bus.Subscribe(id, recorder))
	}

	f := &fixture{
		nodes:    memory.NewNodeRepository(),
		binaries: memory.NewBinaryStore(),
		config:   memory.NewConfigurationRepository(),
		recorder: recorder,
	}
	f.svc = NewService(Dependencies{
		Nodes:    f.nodes,
		Binaries: f.binaries,
		Config:   f.config,
		Bus:      bus,
		Logger:   logger,
	})
	return f
}

var (
	admin = domain.RootAuthContext("acme")
	ctx   = context.Background()
)

func (f *fixture) mustCreate(t *testing.T, auth domain.AuthContext, meta domain.NodeMetadata) *domain.Node {
	t.Helper()
	node, err := f.svc.Create(ctx, auth, meta)
	require.NoError(t, err)
	return node
}

func (f *fixture) mustCreateFolder(t *testing.T, title, parent string) *domain.Node {
	t.Helper()
	return f.mustCreate(t, admin, domain.NodeMetadata{
		Title:    title,
		Mimetype: domain.FolderMimetype,
		Parent:   parent,
	})
}

func TestService_CreateBasics(t *testing.T) {
	f := newFixture(t)

	t.Run("missing parent is rejected", func(t *testing.T) {
		_, err := f.svc.Create(ctx, admin, domain.NodeMetadata{Title: "Orphan"})
		assert.True(t, apperrors.IsBadRequest(err))
	})

	t.Run("unknown parent is rejected", func(t *testing.T) {
		_, err := f.svc.Create(ctx, admin, domain.NodeMetadata{Title: "X", Parent: "ghost"})
		assert.True(t, apperrors.IsNotFound(err))
		assert.Equal(t, apperrors.CodeFolderNotFound, apperrors.Code(err))
	})

	t.Run("reserved uuid is rejected", func(t *testing.T) {
		_, err := f.svc.Create(ctx, admin, domain.NodeMetadata{
			Title: "X", Parent: domain.RootFolderUUID, UUID: "--evil--",
		})
		assert.True(t, apperrors.IsBadRequest(err))
	})

	t.Run("create fills identity and emits NodeCreated", func(t *testing.T) {
		node := f.mustCreate(t, admin, domain.NodeMetadata{
			Title:  "Notes",
			Parent: domain.RootFolderUUID,
		})
		assert.NotEmpty(t, node.UUID)
		assert.Equal(t, "notes", node.FID)
		assert.Equal(t, domain.MetaNodeMimetype, node.Mimetype)
		assert.Equal(t, domain.RootUserEmail, node.Owner)

		created := f.recorder.byID(domain.EventNodeCreated)
		require.NotEmpty(t, created)
		assert.Equal(t, node.UUID, created[len(created)-1].AggregateID())
	})

	t.Run("uuid collision fails", func(t *testing.T) {
		meta := domain.NodeMetadata{Title: "Dup", Parent: domain.RootFolderUUID, UUID: "fixed"}
		f.mustCreate(t, admin, meta)
		meta.Title = "Dup other"
		_, err := f.svc.Create(ctx, admin, meta)
		assert.True(t, apperrors.IsBadRequest(err))
	})

	t.Run("fid collision picks a suffixed slug", func(t *testing.T) {
		a := f.mustCreate(t, admin, domain.NodeMetadata{Title: "Same Name", Parent: domain.RootFolderUUID})
		b := f.mustCreate(t, admin, domain.NodeMetadata{Title: "Same Name", Parent: domain.RootFolderUUID})
		assert.Equal(t, "same-name", a.FID)
		assert.NotEqual(t, a.FID, b.FID)
		assert.Contains(t, b.FID, "same-name-")
	})
}

func TestService_FolderPermissionInheritance(t *testing.T) {
	f := newFixture(t)

	parent := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:    "Shared",
		Mimetype: domain.FolderMimetype,
		Parent:   domain.RootFolderUUID,
		Permissions: &domain.Permissions{
			Authenticated: []domain.Capability{domain.CapabilityRead, domain.CapabilityWrite},
		},
	})

	child := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:    "Inner",
		Mimetype: domain.FolderMimetype,
		Parent:   parent.UUID,
	})
	require.NotNil(t, child.Permissions)
	assert.Equal(t, parent.Permissions.Authenticated, child.Permissions.Authenticated)

	explicit := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:       "Locked",
		Mimetype:    domain.FolderMimetype,
		Parent:      parent.UUID,
		Permissions: &domain.Permissions{},
	})
	assert.Empty(t, explicit.Permissions.Authenticated)
}

func TestService_ParentFilterContainment(t *testing.T) {
	f := newFixture(t)

	pdfOnly := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:    "PDFs",
		Mimetype: domain.FolderMimetype,
		Parent:   domain.RootFolderUUID,
		Filters: filters.Filters{
			{Field: "mimetype", Operator: filters.OpEqual, Value: "application/pdf"},
		},
	})

	_, err := f.svc.CreateFile(ctx, admin, domain.File{
		Name: "doc.pdf", Mimetype: "application/pdf", Content: []byte("%PDF"),
	}, domain.NodeMetadata{Parent: pdfOnly.UUID})
	assert.NoError(t, err)

	_, err = f.svc.CreateFile(ctx, admin, domain.File{
		Name: "doc.txt", Mimetype: "text/plain", Content: []byte("nope"),
	}, domain.NodeMetadata{Parent: pdfOnly.UUID})
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestService_CreateAndFindWithAspect(t *testing.T) {
	f := newFixture(t)

	f.mustCreate(t, admin, domain.NodeMetadata{
		UUID:     "A",
		Title:    "Aspect A",
		Mimetype: domain.AspectMimetype,
		Parent:   domain.AspectsFolderUUID,
		AspectProperties: []domain.AspectProperty{
			{Name: "x", Type: domain.PropertyNumber, Required: true},
		},
	})

	folder := f.mustCreateFolder(t, "F", domain.RootFolderUUID)
	meta := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:      "N",
		Parent:     folder.UUID,
		Aspects:    []string{"A"},
		Properties: map[string]any{"A:x": float64(7)},
	})

	t.Run("missing required property fails", func(t *testing.T) {
		_, err := f.svc.Create(ctx, admin, domain.NodeMetadata{
			Title:   "Bad",
			Parent:  folder.UUID,
			Aspects: []string{"A"},
		})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("find by aspect membership", func(t *testing.T) {
		result, err := f.svc.Find(ctx, admin, FindRequest{
			Filters: filters.Groups{{{Field: "aspects", Operator: filters.OpContains, Value: "A"}}},
		})
		require.NoError(t, err)
		require.Len(t, result.Nodes, 1)
		assert.Equal(t, meta.UUID, result.Nodes[0].UUID)
	})
}

func TestService_PermissionVisibility(t *testing.T) {
	f := newFixture(t)

	sec := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:    "Sec",
		Mimetype: domain.FolderMimetype,
		Parent:   domain.RootFolderUUID,
		Group:    "g1",
		Permissions: &domain.Permissions{
			Group: []domain.Capability{domain.CapabilityRead},
		},
	})
	f.mustCreate(t, admin, domain.NodeMetadata{Title: "Child", Parent: sec.UUID})

	member := domain.AuthContext{Tenant: "acme", Principal: domain.Principal{Email: "m@acme.io", Groups: []string{"g1"}}}
	outsider := domain.AuthContext{Tenant: "acme", Principal: domain.Principal{Email: "o@acme.io", Groups: []string{"g2"}}}

	nodes, err := f.svc.List(ctx, member, sec.UUID)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)

	_, err = f.svc.List(ctx, outsider, sec.UUID)
	assert.True(t, apperrors.IsForbidden(err))

	_, err = f.svc.List(ctx, domain.AnonymousAuthContext("acme"), sec.UUID)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestService_CascadeDelete(t *testing.T) {
	f := newFixture(t)

	p := f.mustCreateFolder(t, "P", domain.RootFolderUUID)
	c1 := f.mustCreateFolder(t, "C1", p.UUID)
	c2 := f.mustCreateFolder(t, "C2", p.UUID)

	var files []*domain.Node
	for _, parent := range []string{c1.UUID, c1.UUID, c2.UUID, c2.UUID} {
		node, err := f.svc.CreateFile(ctx, admin, domain.File{
			Name: "f.txt", Mimetype: "text/plain", Content: []byte("x"),
		}, domain.NodeMetadata{Parent: parent})
		require.NoError(t, err)
		files = append(files, node)
	}

	require.NoError(t, f.svc.Delete(ctx, admin, p.UUID))

	deleted := f.recorder.byID(domain.EventNodeDeleted)
	assert.Len(t, deleted, 7)

	all := append([]*domain.Node{p, c1, c2}, files...)
	for _, n := range all {
		_, err := f.svc.Get(ctx, admin, n.UUID)
		assert.True(t, apperrors.IsNotFound(err), "node %s should be gone", n.Title)
	}

	for _, file := range files {
		_, err := f.binaries.Read(ctx, "acme", file.UUID)
		assert.True(t, apperrors.IsNotFound(err))
	}
}

func TestService_DeleteRules(t *testing.T) {
	f := newFixture(t)

	t.Run("builtins cannot be deleted", func(t *testing.T) {
		err := f.svc.Delete(ctx, admin, domain.RootFolderUUID)
		assert.True(t, apperrors.IsBadRequest(err))
	})

	t.Run("deleting a missing node is NotFound", func(t *testing.T) {
		err := f.svc.Delete(ctx, admin, "ghost")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("delete twice is NotFound", func(t *testing.T) {
		node := f.mustCreate(t, admin, domain.NodeMetadata{Title: "Once", Parent: domain.RootFolderUUID})
		require.NoError(t, f.svc.Delete(ctx, admin, node.UUID))
		assert.True(t, apperrors.IsNotFound(f.svc.Delete(ctx, admin, node.UUID)))
	})
}

func TestService_ReadonlyPreservation(t *testing.T) {
	f := newFixture(t)

	f.mustCreate(t, admin, domain.NodeMetadata{
		UUID:     "inv",
		Title:    "Invoice",
		Mimetype: domain.AspectMimetype,
		Parent:   domain.AspectsFolderUUID,
		AspectProperties: []domain.AspectProperty{
			{Name: "amount", Type: domain.PropertyNumber, Readonly: true},
		},
	})

	node := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:      "Inv 1",
		Parent:     domain.RootFolderUUID,
		Aspects:    []string{"inv"},
		Properties: map[string]any{"inv:amount": float64(100)},
	})

	_, err := f.svc.Update(ctx, admin, node.UUID, domain.NodeMetadata{
		Properties: map[string]any{"inv:amount": float64(0)},
	})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, admin, node.UUID)
	require.NoError(t, err)
	assert.Equal(t, float64(100), got.Properties["inv:amount"])
}

func TestService_UpdateRules(t *testing.T) {
	f := newFixture(t)

	t.Run("builtins cannot be updated", func(t *testing.T) {
		_, err := f.svc.Update(ctx, admin, domain.SystemFolderUUID, domain.NodeMetadata{Title: "X"})
		assert.True(t, apperrors.IsBadRequest(err))
	})

	t.Run("api keys cannot be updated", func(t *testing.T) {
		key := f.mustCreate(t, admin, domain.NodeMetadata{
			Title:    "CI key",
			Mimetype: domain.APIKeyMimetype,
			Parent:   domain.APIKeysFolderUUID,
		})
		_, err := f.svc.Update(ctx, admin, key.UUID, domain.NodeMetadata{Title: "Renamed"})
		assert.True(t, apperrors.IsBadRequest(err))
	})

	t.Run("update emits a diff event", func(t *testing.T) {
		node := f.mustCreate(t, admin, domain.NodeMetadata{Title: "Before", Parent: domain.RootFolderUUID})
		_, err := f.svc.Update(ctx, admin, node.UUID, domain.NodeMetadata{Title: "After"})
		require.NoError(t, err)

		updated := f.recorder.byID(domain.EventNodeUpdated)
		require.NotEmpty(t, updated)
		event := updated[len(updated)-1].(*domain.NodeUpdatedEvent)
		assert.Equal(t, node.UUID, event.AggregateID())
		assert.Equal(t, "Before", event.OldValues["title"])
		assert.Equal(t, "After", event.NewValues["title"])
	})

	t.Run("update is idempotent for visible state", func(t *testing.T) {
		node := f.mustCreate(t, admin, domain.NodeMetadata{Title: "Idem", Parent: domain.RootFolderUUID})
		meta := domain.NodeMetadata{Title: "Renamed", Tags: []string{"a", "b"}}

		first, err := f.svc.Update(ctx, admin, node.UUID, meta)
		require.NoError(t, err)
		second, err := f.svc.Update(ctx, admin, node.UUID, meta)
		require.NoError(t, err)

		assert.Equal(t, first.Title, second.Title)
		assert.Equal(t, first.Tags, second.Tags)
		assert.Equal(t, first.FID, second.FID)
		assert.Equal(t, first.Fulltext, second.Fulltext)
	})
}

func TestService_FolderFilterUpdateIsAtomic(t *testing.T) {
	f := newFixture(t)

	folder := f.mustCreateFolder(t, "Docs", domain.RootFolderUUID)
	_, err := f.svc.CreateFile(ctx, admin, domain.File{
		Name: "a.txt", Mimetype: "text/plain", Content: []byte("a"),
	}, domain.NodeMetadata{Parent: folder.UUID})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, admin, folder.UUID, domain.NodeMetadata{
		Filters: filters.Filters{
			{Field: "mimetype", Operator: filters.OpEqual, Value: "application/pdf"},
		},
	})
	assert.True(t, apperrors.IsBadRequest(err))

	got, err := f.svc.Get(ctx, admin, folder.UUID)
	require.NoError(t, err)
	assert.Empty(t, got.Filters, "failed filter update must not stick")
}

func TestService_UpdateFile(t *testing.T) {
	f := newFixture(t)

	node, err := f.svc.CreateFile(ctx, admin, domain.File{
		Name: "r.txt", Mimetype: "text/plain", Content: []byte("v1"),
	}, domain.NodeMetadata{Parent: domain.RootFolderUUID})
	require.NoError(t, err)

	t.Run("mimetype must match", func(t *testing.T) {
		_, err := f.svc.UpdateFile(ctx, admin, node.UUID, domain.File{
			Name: "r.pdf", Mimetype: "application/pdf", Content: []byte("%PDF"),
		})
		assert.True(t, apperrors.IsBadRequest(err))
	})

	t.Run("replacement updates size", func(t *testing.T) {
		updated, err := f.svc.UpdateFile(ctx, admin, node.UUID, domain.File{
			Name: "r.txt", Mimetype: "text/plain", Content: []byte("longer content"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(len("longer content")), updated.Size)

		content, err := f.binaries.Read(ctx, "acme", node.UUID)
		require.NoError(t, err)
		assert.Equal(t, []byte("longer content"), content)
	})
}

func TestService_GetByFID(t *testing.T) {
	f := newFixture(t)

	node := f.mustCreate(t, admin, domain.NodeMetadata{Title: "Annual Report", Parent: domain.RootFolderUUID})

	byFID, err := f.svc.Get(ctx, admin, domain.FIDPrefix+"annual-report")
	require.NoError(t, err)
	byUUID, err := f.svc.Get(ctx, admin, node.UUID)
	require.NoError(t, err)
	assert.Equal(t, byUUID.UUID, byFID.UUID)

	t.Run("built-in folders resolve through their fid alias", func(t *testing.T) {
		root, err := f.svc.Get(ctx, admin, domain.FIDPrefix+"root")
		require.NoError(t, err)
		assert.Equal(t, domain.RootFolderUUID, root.UUID)

		system, err := f.svc.Get(ctx, admin, domain.FIDPrefix+"system")
		require.NoError(t, err)
		assert.Equal(t, domain.SystemFolderUUID, system.UUID)
	})
}

func TestService_UndeclaredPropertyKeysAreDropped(t *testing.T) {
	f := newFixture(t)

	f.mustCreate(t, admin, domain.NodeMetadata{
		UUID:     "inv",
		Title:    "Invoice",
		Mimetype: domain.AspectMimetype,
		Parent:   domain.AspectsFolderUUID,
		AspectProperties: []domain.AspectProperty{
			{Name: "x", Type: domain.PropertyNumber},
		},
	})

	node := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:      "invoice.pdf",
		Mimetype:   "application/pdf",
		Parent:     domain.RootFolderUUID,
		Aspects:    []string{"inv"},
		Properties: map[string]any{"inv:x": float64(7), "rogue": "zzz"},
	})

	got, err := f.svc.Get(ctx, admin, node.UUID)
	require.NoError(t, err)
	assert.Equal(t, float64(7), got.Properties["inv:x"])
	assert.NotContains(t, got.Properties, "rogue",
		"keys outside every declared aspect namespace never reach storage")
}

func TestService_FulltextDropsShortTokens(t *testing.T) {
	f := newFixture(t)

	node := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:  "Go CI Pipeline",
		Parent: domain.RootFolderUUID,
	})
	assert.Equal(t, "pipeline", node.Fulltext)

	accented := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:  "Relatório Anual",
		Parent: domain.RootFolderUUID,
	})
	assert.Equal(t, "relatorio anual", accented.Fulltext)
}

func TestService_APIKeySecrets(t *testing.T) {
	f := newFixture(t)

	key := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:    "CI",
		Mimetype: domain.APIKeyMimetype,
		Parent:   domain.APIKeysFolderUUID,
	})
	assert.Empty(t, key.Secret, "create response must redact the secret")

	got, err := f.svc.Get(ctx, admin, key.UUID)
	require.NoError(t, err)
	assert.Empty(t, got.Secret)

	withSecret, err := f.svc.GetAPIKeyWithSecret(ctx, admin, key.UUID)
	require.NoError(t, err)
	assert.NotEmpty(t, withSecret.Secret)

	user := domain.AuthContext{Tenant: "acme", Principal: domain.Principal{Email: "u@acme.io"}}
	_, err = f.svc.GetAPIKeyWithSecret(ctx, user, key.UUID)
	assert.True(t, apperrors.IsForbidden(err))

	_, err = f.svc.GetAPIKeyWithSecret(ctx, admin, domain.RootFolderUUID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_CopyAndDuplicate(t *testing.T) {
	f := newFixture(t)

	src := f.mustCreateFolder(t, "Src", domain.RootFolderUUID)
	dst := f.mustCreateFolder(t, "Dst", domain.RootFolderUUID)
	file, err := f.svc.CreateFile(ctx, admin, domain.File{
		Name: "r.txt", Mimetype: "text/plain", Content: []byte("payload"),
	}, domain.NodeMetadata{Title: "Report", Parent: src.UUID})
	require.NoError(t, err)

	t.Run("copy clones into the new parent", func(t *testing.T) {
		clone, err := f.svc.Copy(ctx, admin, file.UUID, dst.UUID)
		require.NoError(t, err)
		assert.Equal(t, dst.UUID, clone.Parent)
		assert.Equal(t, "Report 2", clone.Title)
		assert.Equal(t, file.Size, clone.Size)
		assert.NotEqual(t, file.UUID, clone.UUID)

		content, err := f.binaries.Read(ctx, "acme", clone.UUID)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), content)
	})

	t.Run("duplicate copies into the same parent", func(t *testing.T) {
		dup, err := f.svc.Duplicate(ctx, admin, file.UUID)
		require.NoError(t, err)
		assert.Equal(t, src.UUID, dup.Parent)
		assert.Equal(t, "Report 2", dup.Title)
	})

	t.Run("folders cannot be copied", func(t *testing.T) {
		_, err := f.svc.Copy(ctx, admin, src.UUID, dst.UUID)
		assert.True(t, apperrors.IsBadRequest(err))
	})
}

func TestService_ExportRoundTrip(t *testing.T) {
	f := newFixture(t)

	file, err := f.svc.CreateFile(ctx, admin, domain.File{
		Name: "spec.txt", Mimetype: "text/plain", Content: []byte("round trip"),
	}, domain.NodeMetadata{Parent: domain.RootFolderUUID})
	require.NoError(t, err)

	exported, err := f.svc.Export(ctx, admin, file.UUID)
	require.NoError(t, err)
	assert.Equal(t, file.Title, exported.Name)
	assert.Equal(t, "text/plain", exported.Mimetype)

	again, err := f.svc.CreateFile(ctx, admin, *exported, domain.NodeMetadata{Parent: domain.RootFolderUUID})
	require.NoError(t, err)
	assert.Equal(t, file.Size, again.Size)
	assert.Equal(t, file.Mimetype, again.Mimetype)
	assert.Equal(t, file.Title, again.Title)
}

func TestService_ExportRemapsReservedMimetypes(t *testing.T) {
	f := newFixture(t)

	smart := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:    "Recent",
		Mimetype: domain.SmartFolderMimetype,
		Parent:   domain.RootFolderUUID,
		SmartFilters: filters.Groups{
			{{Field: "mimetype", Operator: filters.OpEqual, Value: "text/plain"}},
		},
	})

	exported, err := f.svc.Export(ctx, admin, smart.UUID)
	require.NoError(t, err)
	assert.Equal(t, "application/json", exported.Mimetype)
	assert.Contains(t, string(exported.Content), "Recent")
}

func TestService_List(t *testing.T) {
	f := newFixture(t)

	folder := f.mustCreateFolder(t, "Beta", domain.RootFolderUUID)
	f.mustCreate(t, admin, domain.NodeMetadata{Title: "Alpha note", Parent: domain.RootFolderUUID})

	t.Run("root injects the system folder, folders first", func(t *testing.T) {
		nodes, err := f.svc.List(ctx, admin, "")
		require.NoError(t, err)
		require.Len(t, nodes, 3)
		assert.Equal(t, folder.UUID, nodes[0].UUID)
		assert.Equal(t, domain.SystemFolderUUID, nodes[1].UUID)
		assert.Equal(t, "Alpha note", nodes[2].Title)
	})

	t.Run("users folder lists built-in accounts", func(t *testing.T) {
		nodes, err := f.svc.List(ctx, admin, domain.UsersFolderUUID)
		require.NoError(t, err)
		emails := make([]string, 0, len(nodes))
		for _, n := range nodes {
			emails = append(emails, n.UUID)
		}
		assert.Contains(t, emails, domain.RootUserEmail)
		assert.Contains(t, emails, domain.AnonymousUserEmail)
	})

	t.Run("groups folder lists built-in groups", func(t *testing.T) {
		nodes, err := f.svc.List(ctx, admin, domain.GroupsFolderUUID)
		require.NoError(t, err)
		uuids := make([]string, 0, len(nodes))
		for _, n := range nodes {
			uuids = append(uuids, n.UUID)
		}
		assert.Contains(t, uuids, domain.AdminsGroupUUID)
		assert.Contains(t, uuids, domain.AnonymousGroupUUID)
	})

	t.Run("listing a non-folder fails", func(t *testing.T) {
		note := f.mustCreate(t, admin, domain.NodeMetadata{Title: "Plain", Parent: domain.RootFolderUUID})
		_, err := f.svc.List(ctx, admin, note.UUID)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestService_SmartFolders(t *testing.T) {
	f := newFixture(t)

	folder := f.mustCreateFolder(t, "Docs", domain.RootFolderUUID)
	for _, title := range []string{"a", "b", "c"} {
		_, err := f.svc.CreateFile(ctx, admin, domain.File{
			Name: title + ".txt", Mimetype: "text/plain", Content: []byte(title),
		}, domain.NodeMetadata{Parent: folder.UUID})
		require.NoError(t, err)
	}

	smart := f.mustCreate(t, admin, domain.NodeMetadata{
		Title:    "All texts",
		Mimetype: domain.SmartFolderMimetype,
		Parent:   domain.RootFolderUUID,
		SmartFilters: filters.Groups{
			{{Field: "mimetype", Operator: filters.OpEqual, Value: "text/plain"}},
		},
		Aggregations: []domain.Aggregation{
			{Title: "files", Formula: "count"},
			{Title: "bytes", FieldName: "size", Formula: "sum"},
		},
	})

	t.Run("evaluate returns matches and aggregations", func(t *testing.T) {
		result, err := f.svc.Evaluate(ctx, admin, smart.UUID)
		require.NoError(t, err)
		assert.Len(t, result.Nodes, 3)
		require.Len(t, result.Aggregations, 2)
		assert.Equal(t, 3, result.Aggregations[0].Value)
		assert.Equal(t, 3.0, result.Aggregations[1].Value)
	})

	t.Run("list on a smart folder evaluates it", func(t *testing.T) {
		nodes, err := f.svc.List(ctx, admin, smart.UUID)
		require.NoError(t, err)
		assert.Len(t, nodes, 3)
	})

	t.Run("evaluate on a non smart folder fails", func(t *testing.T) {
		_, err := f.svc.Evaluate(ctx, admin, folder.UUID)
		assert.True(t, apperrors.IsNotFound(err))
		assert.Equal(t, apperrors.CodeSmartFolderNodeNotFound, apperrors.Code(err))
	})

	t.Run("unknown aggregation formula fails", func(t *testing.T) {
		bad := f.mustCreate(t, admin, domain.NodeMetadata{
			Title:    "Broken",
			Mimetype: domain.SmartFolderMimetype,
			Parent:   domain.RootFolderUUID,
			SmartFilters: filters.Groups{
				{{Field: "mimetype", Operator: filters.OpEqual, Value: "text/plain"}},
			},
			Aggregations: []domain.Aggregation{{Title: "x", Formula: "stddev"}},
		})
		_, err := f.svc.Evaluate(ctx, admin, bad.UUID)
		assert.Equal(t, apperrors.CodeAggregationFormula, apperrors.Code(err))
	})
}

func TestService_Breadcrumbs(t *testing.T) {
	f := newFixture(t)

	a := f.mustCreateFolder(t, "A", domain.RootFolderUUID)
	b := f.mustCreateFolder(t, "B", a.UUID)
	leaf := f.mustCreate(t, admin, domain.NodeMetadata{Title: "Leaf", Parent: b.UUID})

	crumbs, err := f.svc.Breadcrumbs(ctx, admin, leaf.UUID)
	require.NoError(t, err)
	require.Len(t, crumbs, 4)
	assert.Equal(t, domain.RootFolderUUID, crumbs[0].UUID)
	assert.Equal(t, "A", crumbs[1].Title)
	assert.Equal(t, "B", crumbs[2].Title)
	assert.Equal(t, "Leaf", crumbs[3].Title)
}

func TestService_FindPagination(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 7; i++ {
		f.mustCreate(t, admin, domain.NodeMetadata{
			Title:  string(rune('a' + i)),
			Parent: domain.RootFolderUUID,
		})
	}

	seen := map[string]int{}
	for token := 1; ; token++ {
		result, err := f.svc.Find(ctx, admin, FindRequest{PageSize: 3, PageToken: token})
		require.NoError(t, err)
		for _, n := range result.Nodes {
			seen[n.UUID]++
		}
		if token >= result.PageCount {
			break
		}
	}

	assert.Len(t, seen, 7, "every stored node appears")
	for uuid, count := range seen {
		assert.Equal(t, 1, count, "node %s must appear exactly once", uuid)
	}
}

func TestService_FeatureRules(t *testing.T) {
	f := newFixture(t)

	t.Run("action without uuids parameter fails", func(t *testing.T) {
		_, err := f.svc.Create(ctx, admin, domain.NodeMetadata{
			Title:    "Broken action",
			Mimetype: domain.FeatureMimetype,
			Parent:   domain.FeaturesFolderUUID,
			Feature:  &domain.FeatureProps{ExposeAction: true},
		})
		assert.True(t, apperrors.IsBadRequest(err))
	})

	t.Run("well-formed action is accepted", func(t *testing.T) {
		node := f.mustCreate(t, admin, domain.NodeMetadata{
			Title:    "Archive",
			Mimetype: domain.FeatureMimetype,
			Parent:   domain.FeaturesFolderUUID,
			Feature: &domain.FeatureProps{
				ExposeAction: true,
				Parameters: []domain.FeatureParameter{
					{Name: "uuids", Type: "array", ArrayType: "string"},
				},
			},
		})
		assert.Equal(t, domain.FeatureMimetype, node.Mimetype)
	})
}
