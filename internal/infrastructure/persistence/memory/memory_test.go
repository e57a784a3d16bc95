package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

const tenant = "acme"

func newNode(uuid, title string) *domain.Node {
	return &domain.Node{
		UUID:     uuid,
		Title:    title,
		Mimetype: "text/plain",
		Parent:   domain.RootFolderUUID,
	}
}

func TestNodeRepository_AddAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewNodeRepository()

	node := newNode("n1", "Report")
	node.FID = "report"
	require.NoError(t, repo.Add(ctx, tenant, node))

	t.Run("by uuid", func(t *testing.T) {
		got, err := repo.GetByUUID(ctx, tenant, "n1")
		require.NoError(t, err)
		assert.Equal(t, "Report", got.Title)
	})

	t.Run("by fid", func(t *testing.T) {
		got, err := repo.GetByFID(ctx, tenant, "report")
		require.NoError(t, err)
		assert.Equal(t, "n1", got.UUID)
	})

	t.Run("unknown uuid", func(t *testing.T) {
		_, err := repo.GetByUUID(ctx, tenant, "missing")
		assert.True(t, apperrors.IsNotFound(err))
		assert.Equal(t, apperrors.CodeNodeNotFound, apperrors.Code(err))
	})

	t.Run("duplicate uuid rejected", func(t *testing.T) {
		err := repo.Add(ctx, tenant, newNode("n1", "Other"))
		assert.True(t, apperrors.IsBadRequest(err))
	})

	t.Run("other tenant sees nothing", func(t *testing.T) {
		_, err := repo.GetByUUID(ctx, "other", "n1")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestNodeRepository_StoredNodesDoNotAliasCallers(t *testing.T) {
	ctx := context.Background()
	repo := NewNodeRepository()

	node := newNode("n1", "Report")
	node.Tags = []string{"a"}
	require.NoError(t, repo.Add(ctx, tenant, node))

	node.Title = "Mutated"
	node.Tags[0] = "z"

	got, err := repo.GetByUUID(ctx, tenant, "n1")
	require.NoError(t, err)
	assert.Equal(t, "Report", got.Title)
	assert.Equal(t, []string{"a"}, got.Tags)

	got.Title = "AlsoMutated"
	again, err := repo.GetByUUID(ctx, tenant, "n1")
	require.NoError(t, err)
	assert.Equal(t, "Report", again.Title)
}

func TestNodeRepository_UpdateReindexesFID(t *testing.T) {
	ctx := context.Background()
	repo := NewNodeRepository()

	node := newNode("n1", "Report")
	node.FID = "report"
	require.NoError(t, repo.Add(ctx, tenant, node))

	node.FID = "annual-report"
	node.Title = "Annual Report"
	require.NoError(t, repo.Update(ctx, tenant, node))

	_, err := repo.GetByFID(ctx, tenant, "report")
	assert.True(t, apperrors.IsNotFound(err))

	got, err := repo.GetByFID(ctx, tenant, "annual-report")
	require.NoError(t, err)
	assert.Equal(t, "Annual Report", got.Title)
}

func TestNodeRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewNodeRepository()

	node := newNode("n1", "Report")
	node.FID = "report"
	require.NoError(t, repo.Add(ctx, tenant, node))
	require.NoError(t, repo.Delete(ctx, tenant, "n1"))

	_, err := repo.GetByUUID(ctx, tenant, "n1")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = repo.GetByFID(ctx, tenant, "report")
	assert.True(t, apperrors.IsNotFound(err))

	assert.True(t, apperrors.IsNotFound(repo.Delete(ctx, tenant, "n1")))
}

func TestNodeRepository_FilterOrderingAndPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewNodeRepository()

	// Same title resolves ties by uuid.
	require.NoError(t, repo.Add(ctx, tenant, newNode("b", "Alpha")))
	require.NoError(t, repo.Add(ctx, tenant, newNode("a", "Alpha")))
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Add(ctx, tenant, newNode(fmt.Sprintf("n%d", i), fmt.Sprintf("Title %d", i))))
	}

	page, err := repo.Filter(ctx, tenant, nil, repository.Pagination{PageSize: 3, PageToken: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.PageCount)
	require.Len(t, page.Nodes, 3)
	assert.Equal(t, "a", page.Nodes[0].UUID)
	assert.Equal(t, "b", page.Nodes[1].UUID)
	assert.Equal(t, "Title 0", page.Nodes[2].Title)

	last, err := repo.Filter(ctx, tenant, nil, repository.Pagination{PageSize: 3, PageToken: 3})
	require.NoError(t, err)
	assert.Len(t, last.Nodes, 1)

	beyond, err := repo.Filter(ctx, tenant, nil, repository.Pagination{PageSize: 3, PageToken: 9})
	require.NoError(t, err)
	assert.Empty(t, beyond.Nodes)
	assert.Equal(t, 3, beyond.PageCount)
}

func TestPaginate_EmptyResult(t *testing.T) {
	page := Paginate(nil, repository.Pagination{})
	assert.Equal(t, 1, page.PageCount)
	assert.Equal(t, repository.DefaultPageSize, page.PageSize)
	assert.Empty(t, page.Nodes)
}

func TestBinaryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewBinaryStore()
	meta := repository.BinaryMetadata{Title: "report.txt", Parent: domain.RootFolderUUID, Mimetype: "text/plain"}

	require.NoError(t, store.Write(ctx, tenant, "n1", []byte("hello"), meta))

	content, err := store.Read(ctx, tenant, "n1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)

	require.NoError(t, store.Write(ctx, tenant, "n1", []byte("replaced"), meta))
	content, err = store.Read(ctx, tenant, "n1")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), content)

	require.NoError(t, store.Delete(ctx, tenant, "n1"))
	_, err = store.Read(ctx, tenant, "n1")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, apperrors.CodeNodeFileNotFound, apperrors.Code(err))
}

func TestConfigurationRepository_Collections(t *testing.T) {
	ctx := context.Background()
	repo := NewConfigurationRepository()

	aspect := domain.Aspect{UUID: "invoice", Title: "Invoice"}
	require.NoError(t, repo.Aspects().Save(ctx, tenant, aspect))

	t.Run("get saved item", func(t *testing.T) {
		got, err := repo.Aspects().Get(ctx, tenant, "invoice")
		require.NoError(t, err)
		assert.Equal(t, "Invoice", got.Title)
	})

	t.Run("reserved uuid rejected", func(t *testing.T) {
		err := repo.Aspects().Save(ctx, tenant, domain.Aspect{UUID: "--aspects--"})
		assert.True(t, apperrors.IsBadRequest(err))
		assert.True(t, apperrors.IsBadRequest(repo.Aspects().Delete(ctx, tenant, "--root--")))
	})

	t.Run("tenant isolation", func(t *testing.T) {
		_, err := repo.Aspects().Get(ctx, "other", "invoice")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Aspects().Delete(ctx, tenant, "invoice"))
		_, err := repo.Aspects().Get(ctx, tenant, "invoice")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("workflow definitions are a separate collection", func(t *testing.T) {
		def := domain.WorkflowDefinition{UUID: "approval", Title: "Approval"}
		require.NoError(t, repo.WorkflowDefinitions().Save(ctx, tenant, def))

		list, err := repo.WorkflowDefinitions().List(ctx, tenant)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "approval", list[0].ID())
	})
}

func TestVectorIndex_SearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	index := NewVectorIndex()

	require.NoError(t, index.Upsert(ctx, tenant, repository.VectorEntry{NodeUUID: "same", Vector: []float32{1, 0}}))
	require.NoError(t, index.Upsert(ctx, tenant, repository.VectorEntry{NodeUUID: "orthogonal", Vector: []float32{0, 1}}))
	require.NoError(t, index.Upsert(ctx, tenant, repository.VectorEntry{NodeUUID: "opposite", Vector: []float32{-1, 0}}))

	matches, err := index.Search(ctx, tenant, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "same", matches[0].NodeUUID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, "orthogonal", matches[1].NodeUUID)
	assert.InDelta(t, 0.5, matches[1].Score, 1e-9)
	assert.Equal(t, "opposite", matches[2].NodeUUID)
	assert.InDelta(t, 0.0, matches[2].Score, 1e-9)
}

func TestVectorIndex_TopKAndDelete(t *testing.T) {
	ctx := context.Background()
	index := NewVectorIndex()

	for i := 0; i < 5; i++ {
		uuid := fmt.Sprintf("n%d", i)
		require.NoError(t, index.Upsert(ctx, tenant, repository.VectorEntry{NodeUUID: uuid, Vector: []float32{1, float32(i)}}))
	}

	matches, err := index.Search(ctx, tenant, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	require.NoError(t, index.DeleteByNodeUUID(ctx, tenant, "n0"))
	matches, err = index.Search(ctx, tenant, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 4)

	assert.NoError(t, index.DeleteByNodeUUID(ctx, tenant, "never-indexed"))
}
