// Package memory provides in-memory implementations of the persistence
// interfaces. They back the tests and single-process deployments; the
// DynamoDB, S3 and SQLite packages provide the durable backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

// NodeRepository is a mutex-guarded map of tenant → uuid → node. All nodes
// are cloned on the way in and out so callers never alias stored state.
type NodeRepository struct {
	mu    sync.RWMutex
	nodes map[string]map[string]*domain.Node
	fids  map[string]map[string]string
}

// NewNodeRepository creates an empty in-memory node repository.
func NewNodeRepository() *NodeRepository {
	return &NodeRepository{
		nodes: make(map[string]map[string]*domain.Node),
		fids:  make(map[string]map[string]string),
	}
}

// Add stores a new node, failing on uuid or fid collision.
func (r *NodeRepository) Add(ctx context.Context, tenant string, node *domain.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byUUID := r.tenantNodes(tenant)
	if _, exists := byUUID[node.UUID]; exists {
		return apperrors.NewBadRequest(fmt.Sprintf("uuid %q already exists", node.UUID))
	}
	byFID := r.tenantFIDs(tenant)
	if _, exists := byFID[node.FID]; node.FID != "" && exists {
		return apperrors.NewBadRequest(fmt.Sprintf("fid %q already exists", node.FID))
	}

	byUUID[node.UUID] = node.Clone()
	if node.FID != "" {
		byFID[node.FID] = node.UUID
	}
	return nil
}

// Update replaces the full record atomically.
func (r *NodeRepository) Update(ctx context.Context, tenant string, node *domain.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byUUID := r.tenantNodes(tenant)
	prior, exists := byUUID[node.UUID]
	if !exists {
		return domain.NewNodeNotFound(node.UUID)
	}

	byFID := r.tenantFIDs(tenant)
	if prior.FID != node.FID {
		if _, taken := byFID[node.FID]; node.FID != "" && taken {
			return apperrors.NewBadRequest(fmt.Sprintf("fid %q already exists", node.FID))
		}
		delete(byFID, prior.FID)
		if node.FID != "" {
			byFID[node.FID] = node.UUID
		}
	}
	byUUID[node.UUID] = node.Clone()
	return nil
}

// Delete removes a node; deleting a missing uuid reports NotFound.
func (r *NodeRepository) Delete(ctx context.Context, tenant, uuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byUUID := r.tenantNodes(tenant)
	node, exists := byUUID[uuid]
	if !exists {
		return domain.NewNodeNotFound(uuid)
	}
	delete(byUUID, uuid)
	delete(r.tenantFIDs(tenant), node.FID)
	return nil
}

// GetByUUID retrieves a node by uuid.
func (r *NodeRepository) GetByUUID(ctx context.Context, tenant, uuid string) (*domain.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, exists := r.nodes[tenant][uuid]
	if !exists {
		return nil, domain.NewNodeNotFound(uuid)
	}
	return node.Clone(), nil
}

// GetByFID retrieves a node by its human slug.
func (r *NodeRepository) GetByFID(ctx context.Context, tenant, fid string) (*domain.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	uuid, exists := r.fids[tenant][fid]
	if !exists {
		return nil, domain.NewNodeNotFound(fid)
	}
	return r.nodes[tenant][uuid].Clone(), nil
}

// Filter evaluates the AST over the tenant's nodes with deterministic
// (title ASC, uuid ASC) ordering and 1-based page tokens.
func (r *NodeRepository) Filter(ctx context.Context, tenant string, groups filters.Groups, page repository.Pagination) (*repository.NodePage, error) {
	r.mu.RLock()
	matched := make([]*domain.Node, 0)
	for _, node := range r.nodes[tenant] {
		if filters.SatisfiesGroups(groups, node.Resolver()) {
			matched = append(matched, node.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Title != matched[j].Title {
			return matched[i].Title < matched[j].Title
		}
		return matched[i].UUID < matched[j].UUID
	})

	return Paginate(matched, page), nil
}

// Paginate slices a sorted result set into the requested page. Shared with
// other backends that evaluate filters client-side.
func Paginate(nodes []*domain.Node, page repository.Pagination) *repository.NodePage {
	page = page.Normalized()
	pageCount := (len(nodes) + page.PageSize - 1) / page.PageSize
	if pageCount == 0 {
		pageCount = 1
	}

	start := (page.PageToken - 1) * page.PageSize
	if start > len(nodes) {
		start = len(nodes)
	}
	end := start + page.PageSize
	if end > len(nodes) {
		end = len(nodes)
	}

	return &repository.NodePage{
		Nodes:     nodes[start:end],
		PageSize:  page.PageSize,
		PageToken: page.PageToken,
		PageCount: pageCount,
	}
}

func (r *NodeRepository) tenantNodes(tenant string) map[string]*domain.Node {
	if r.nodes[tenant] == nil {
		r.nodes[tenant] = make(map[string]*domain.Node)
	}
	return r.nodes[tenant]
}

func (r *NodeRepository) tenantFIDs(tenant string) map[string]string {
	if r.fids[tenant] == nil {
		r.fids[tenant] = make(map[string]string)
	}
	return r.fids[tenant]
}
