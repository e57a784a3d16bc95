// Package dynamo implements the node repository on DynamoDB using a single
// table. Nodes live under PK=TENANT#<tenant> SK=NODE#<uuid>; fid uniqueness
// is enforced with alias items written in the same transaction.
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
	"antbox-backend/internal/infrastructure/persistence/memory"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

const (
	tenantPrefix = "TENANT#"
	nodePrefix   = "NODE#"
	fidPrefix    = "FID#"
)

// Client is the subset of the DynamoDB API the repository needs. The SDK
// client satisfies it; tests substitute a fake.
type Client interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// NodeRepository stores nodes in a single DynamoDB table. Filter evaluation
// happens client-side over the tenant partition; DynamoDB has no expression
// language for the filter AST.
type NodeRepository struct {
	client Client
	table  string
	logger *zap.Logger
}

// NewNodeRepository creates a repository bound to a table.
func NewNodeRepository(client Client, table string, logger *zap.Logger) *NodeRepository {
	return &NodeRepository{client: client, table: table, logger: logger}
}

var _ repository.NodeRepository = (*NodeRepository)(nil)

// nodeRecord is the stored item shape. The node itself travels as a JSON
// document; the projected attributes exist only for keys and aliases.
type nodeRecord struct {
	PK       string `dynamodbav:"PK"`
	SK       string `dynamodbav:"SK"`
	UUID     string `dynamodbav:"UUID"`
	FID      string `dynamodbav:"FID,omitempty"`
	Document []byte `dynamodbav:"Document"`
}

// aliasRecord reserves a fid within the tenant partition.
type aliasRecord struct {
	PK   string `dynamodbav:"PK"`
	SK   string `dynamodbav:"SK"`
	UUID string `dynamodbav:"UUID"`
}

// Add stores a new node, failing on uuid or fid collision. The node item and
// the fid alias commit in one transaction so a half-registered alias can
// never be observed.
func (r *NodeRepository) Add(ctx context.Context, tenant string, node *domain.Node) error {
	item, err := marshalNode(tenant, node)
	if err != nil {
		return err
	}

	writes := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(r.table),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	}}
	if node.FID != "" {
		alias, err := marshalAlias(tenant, node.FID, node.UUID)
		if err != nil {
			return err
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(r.table),
				Item:                alias,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			},
		})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if isConditionFailure(err) {
		return apperrors.NewBadRequest(fmt.Sprintf("uuid %q or fid %q already exists", node.UUID, node.FID))
	}
	if err != nil {
		return apperrors.Wrap(err, "storing node")
	}
	return nil
}

// Update replaces the full record. A fid change re-points the alias items in
// the same transaction.
func (r *NodeRepository) Update(ctx context.Context, tenant string, node *domain.Node) error {
	prior, err := r.GetByUUID(ctx, tenant, node.UUID)
	if err != nil {
		return err
	}

	item, err := marshalNode(tenant, node)
	if err != nil {
		return err
	}

	writes := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(r.table),
			Item:                item,
			ConditionExpression: aws.String("attribute_exists(PK)"),
		},
	}}
	if prior.FID != node.FID {
		if prior.FID != "" {
			writes = append(writes, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(r.table),
					Key:       aliasKey(tenant, prior.FID),
				},
			})
		}
		if node.FID != "" {
			alias, err := marshalAlias(tenant, node.FID, node.UUID)
			if err != nil {
				return err
			}
			writes = append(writes, types.TransactWriteItem{
				Put: &types.Put{
					TableName:           aws.String(r.table),
					Item:                alias,
					ConditionExpression: aws.String("attribute_not_exists(PK)"),
				},
			})
		}
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if isConditionFailure(err) {
		return apperrors.NewBadRequest(fmt.Sprintf("fid %q already exists", node.FID))
	}
	if err != nil {
		return apperrors.Wrap(err, "updating node")
	}
	return nil
}

// Delete removes the node and its fid alias.
func (r *NodeRepository) Delete(ctx context.Context, tenant, uuid string) error {
	prior, err := r.GetByUUID(ctx, tenant, uuid)
	if err != nil {
		return err
	}

	writes := []types.TransactWriteItem{{
		Delete: &types.Delete{
			TableName:           aws.String(r.table),
			Key:                 nodeKey(tenant, uuid),
			ConditionExpression: aws.String("attribute_exists(PK)"),
		},
	}}
	if prior.FID != "" {
		writes = append(writes, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(r.table),
				Key:       aliasKey(tenant, prior.FID),
			},
		})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if isConditionFailure(err) {
		return domain.NewNodeNotFound(uuid)
	}
	if err != nil {
		return apperrors.Wrap(err, "deleting node")
	}
	return nil
}

// GetByUUID retrieves a node by uuid.
func (r *NodeRepository) GetByUUID(ctx context.Context, tenant, uuid string) (*domain.Node, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            nodeKey(tenant, uuid),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "reading node")
	}
	if out.Item == nil {
		return nil, domain.NewNodeNotFound(uuid)
	}
	return unmarshalNode(out.Item)
}

// GetByFID resolves the alias item and follows it to the node.
func (r *NodeRepository) GetByFID(ctx context.Context, tenant, fid string) (*domain.Node, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            aliasKey(tenant, fid),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "resolving fid")
	}
	if out.Item == nil {
		return nil, domain.NewNodeNotFound(fid)
	}
	var alias aliasRecord
	if err := attributevalue.UnmarshalMap(out.Item, &alias); err != nil {
		return nil, apperrors.Wrap(err, "decoding fid alias")
	}
	return r.GetByUUID(ctx, tenant, alias.UUID)
}

// Filter queries the whole tenant partition and evaluates the filter AST
// client-side, then sorts and pages like the in-memory backend.
func (r *NodeRepository) Filter(ctx context.Context, tenant string, groups filters.Groups, page repository.Pagination) (*repository.NodePage, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(tenantPrefix + tenant)).
		And(expression.Key("SK").BeginsWith(nodePrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "building query expression")
	}

	matched := make([]*domain.Node, 0)
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.table),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, apperrors.Wrap(err, "querying nodes")
		}
		for _, item := range out.Items {
			node, err := unmarshalNode(item)
			if err != nil {
				r.logger.Warn("skipping undecodable node item", zap.Error(err))
				continue
			}
			if filters.SatisfiesGroups(groups, node.Resolver()) {
				matched = append(matched, node)
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Title != matched[j].Title {
			return matched[i].Title < matched[j].Title
		}
		return matched[i].UUID < matched[j].UUID
	})
	return memory.Paginate(matched, page), nil
}

func nodeKey(tenant, uuid string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: tenantPrefix + tenant},
		"SK": &types.AttributeValueMemberS{Value: nodePrefix + uuid},
	}
}

func aliasKey(tenant, fid string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: tenantPrefix + tenant},
		"SK": &types.AttributeValueMemberS{Value: fidPrefix + fid},
	}
}

func marshalNode(tenant string, node *domain.Node) (map[string]types.AttributeValue, error) {
	doc, err := json.Marshal(node)
	if err != nil {
		return nil, apperrors.Wrap(err, "encoding node document")
	}
	return attributevalue.MarshalMap(nodeRecord{
		PK:       tenantPrefix + tenant,
		SK:       nodePrefix + node.UUID,
		UUID:     node.UUID,
		FID:      node.FID,
		Document: doc,
	})
}

func marshalAlias(tenant, fid, uuid string) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(aliasRecord{
		PK:   tenantPrefix + tenant,
		SK:   fidPrefix + fid,
		UUID: uuid,
	})
}

func unmarshalNode(item map[string]types.AttributeValue) (*domain.Node, error) {
	var record nodeRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, apperrors.Wrap(err, "decoding node item")
	}
	var node domain.Node
	if err := json.Unmarshal(record.Document, &node); err != nil {
		return nil, apperrors.Wrap(err, "decoding node document")
	}
	return &node, nil
}

// isConditionFailure recognizes both plain conditional failures and
// transaction cancellations caused by one.
func isConditionFailure(err error) bool {
	if err == nil {
		return false
	}
	var conditional *types.ConditionalCheckFailedException
	if errors.As(err, &conditional) {
		return true
	}
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ConditionalCheckFailedException"
	}
	return false
}
