package dynamo

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

var ctx = context.Background()

// fakeClient is an in-memory stand-in for the DynamoDB API, honoring the
// conditional expressions the repository uses.
type fakeClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: map[string]map[string]types.AttributeValue{}}
}

func itemKey(item map[string]types.AttributeValue) string {
	pk := item["PK"].(*types.AttributeValueMemberS).Value
	sk := item["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemKey(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var partition string
	for _, v := range params.ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok && strings.HasPrefix(s.Value, tenantPrefix) {
			partition = s.Value
		}
	}

	out := &dynamodb.QueryOutput{}
	for key, item := range f.items {
		pk, sk, _ := strings.Cut(key, "|")
		if pk == partition && strings.HasPrefix(sk, nodePrefix) {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (f *fakeClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, write := range params.TransactItems {
		switch {
		case write.Put != nil:
			_, exists := f.items[itemKey(write.Put.Item)]
			if write.Put.ConditionExpression != nil && *write.Put.ConditionExpression == "attribute_not_exists(PK)" && exists {
				return nil, conditionFailed()
			}
			if write.Put.ConditionExpression != nil && *write.Put.ConditionExpression == "attribute_exists(PK)" && !exists {
				return nil, conditionFailed()
			}
		case write.Delete != nil:
			_, exists := f.items[itemKey(write.Delete.Key)]
			if write.Delete.ConditionExpression != nil && *write.Delete.ConditionExpression == "attribute_exists(PK)" && !exists {
				return nil, conditionFailed()
			}
		}
	}

	for _, write := range params.TransactItems {
		switch {
		case write.Put != nil:
			f.items[itemKey(write.Put.Item)] = write.Put.Item
		case write.Delete != nil:
			delete(f.items, itemKey(write.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func conditionFailed() error {
	code := "ConditionalCheckFailed"
	return &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: &code}},
	}
}

func newRepo(t *testing.T) (*NodeRepository, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	return NewNodeRepository(client, "antbox-nodes", zaptest.NewLogger(t)), client
}

func TestNodeRepository_AddAndGet(t *testing.T) {
	repo, _ := newRepo(t)

	node := &domain.Node{
		UUID: "n1", FID: "annual-report", Title: "Annual report",
		Mimetype: "application/pdf", Parent: domain.RootFolderUUID,
		Owner:      domain.RootUserEmail,
		Properties: map[string]any{"inv:amount": float64(100)},
	}
	require.NoError(t, repo.Add(ctx, "acme", node))

	got, err := repo.GetByUUID(ctx, "acme", "n1")
	require.NoError(t, err)
	assert.Equal(t, "Annual report", got.Title)
	assert.Equal(t, float64(100), got.Properties["inv:amount"])

	byFID, err := repo.GetByFID(ctx, "acme", "annual-report")
	require.NoError(t, err)
	assert.Equal(t, "n1", byFID.UUID)

	t.Run("uuid collision", func(t *testing.T) {
		err := repo.Add(ctx, "acme", &domain.Node{UUID: "n1", Title: "Dup"})
		assert.Equal(t, apperrors.CodeBadRequest, apperrors.Code(err))
	})

	t.Run("fid collision", func(t *testing.T) {
		err := repo.Add(ctx, "acme", &domain.Node{UUID: "n2", FID: "annual-report", Title: "Dup"})
		assert.Equal(t, apperrors.CodeBadRequest, apperrors.Code(err))
	})

	t.Run("tenant isolation", func(t *testing.T) {
		_, err := repo.GetByUUID(ctx, "other", "n1")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestNodeRepository_UpdateRealiases(t *testing.T) {
	repo, _ := newRepo(t)

	node := &domain.Node{UUID: "n1", FID: "old-name", Title: "Old name"}
	require.NoError(t, repo.Add(ctx, "acme", node))

	renamed := node.Clone()
	renamed.FID = "new-name"
	renamed.Title = "New name"
	require.NoError(t, repo.Update(ctx, "acme", renamed))

	_, err := repo.GetByFID(ctx, "acme", "old-name")
	assert.True(t, apperrors.IsNotFound(err))

	got, err := repo.GetByFID(ctx, "acme", "new-name")
	require.NoError(t, err)
	assert.Equal(t, "New name", got.Title)
}

func TestNodeRepository_Delete(t *testing.T) {
	repo, _ := newRepo(t)

	require.NoError(t, repo.Add(ctx, "acme", &domain.Node{UUID: "n1", FID: "doc", Title: "Doc"}))
	require.NoError(t, repo.Delete(ctx, "acme", "n1"))

	_, err := repo.GetByUUID(ctx, "acme", "n1")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = repo.GetByFID(ctx, "acme", "doc")
	assert.True(t, apperrors.IsNotFound(err))

	assert.True(t, apperrors.IsNotFound(repo.Delete(ctx, "acme", "n1")))
}

func TestNodeRepository_Filter(t *testing.T) {
	repo, _ := newRepo(t)

	for _, spec := range []struct{ uuid, title, mimetype string }{
		{"a", "Alpha", "application/pdf"},
		{"b", "Beta", "text/plain"},
		{"c", "Gamma", "application/pdf"},
	} {
		require.NoError(t, repo.Add(ctx, "acme", &domain.Node{
			UUID: spec.uuid, Title: spec.title, Mimetype: spec.mimetype,
			Parent: domain.RootFolderUUID,
		}))
	}

	result, err := repo.Filter(ctx, "acme", filters.Groups{{
		{Field: "mimetype", Operator: filters.OpEqual, Value: "application/pdf"},
	}}, repository.Pagination{})
	require.NoError(t, err)

	require.Len(t, result.Nodes, 2)
	assert.Equal(t, "Alpha", result.Nodes[0].Title)
	assert.Equal(t, "Gamma", result.Nodes[1].Title)
	assert.Equal(t, 1, result.PageCount)
}
