package node

import (
	"context"

	"go.uber.org/zap"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
	"antbox-backend/internal/repository"
)

// semanticTopK caps how many neighbours a semantic predicate pulls from the
// vector database.
const semanticTopK = 25

// Find evaluates a filter query with permission rewriting, semantic search
// and parent-predicate resolution. A raw query string that fails to parse as
// the filter grammar is treated as a content match.
func (s *service) Find(ctx context.Context, auth domain.AuthContext, req FindRequest) (result *FindResult, err error) {
	start := s.now()
	defer func() { s.observe("find", start, err) }()

	groups := req.Filters
	if groups == nil && req.Query != "" {
		parsed, parseErr := filters.Parse(req.Query)
		if parseErr != nil {
			groups = filters.Groups{{{
				Field:    filters.ContentField,
				Operator: filters.OpSemantic,
				Value:    req.Query,
			}}}
		} else {
			groups = parsed
		}
	}

	prepared, scores, err := s.prepareQuery(ctx, auth, groups)
	if err != nil {
		return nil, err
	}

	page := repository.Pagination{PageSize: req.PageSize, PageToken: req.PageToken}.Normalized()
	pageResult, err := s.nodes.Filter(ctx, auth.Tenant, prepared, page)
	if err != nil {
		return nil, err
	}

	nodes := pageResult.Nodes
	for i, n := range nodes {
		nodes[i] = n.WithoutSecret()
	}
	scores = scoresFor(scores, nodes)
	return &FindResult{
		Nodes:     nodes,
		PageSize:  pageResult.PageSize,
		PageToken: pageResult.PageToken,
		PageCount: pageResult.PageCount,
		Scores:    scores,
	}, nil
}

// executeAll runs the find pipeline without pagination, for smart folder
// evaluation and other internal full scans.
func (s *service) executeAll(ctx context.Context, auth domain.AuthContext, groups filters.Groups) ([]*domain.Node, map[string]float64, error) {
	prepared, scores, err := s.prepareQuery(ctx, auth, groups)
	if err != nil {
		return nil, nil, err
	}

	var nodes []*domain.Node
	page := repository.All()
	for {
		result, err := s.nodes.Filter(ctx, auth.Tenant, prepared, page)
		if err != nil {
			return nil, nil, err
		}
		for _, n := range result.Nodes {
			nodes = append(nodes, n.WithoutSecret())
		}
		if page.PageToken >= result.PageCount {
			return nodes, scores, nil
		}
		page.PageToken++
	}
}

// prepareQuery runs the three rewriting passes in order: semantic predicates
// become uuid membership, the permission model multiplies each conjunction,
// and parent predicates collapse into parent membership.
func (s *service) prepareQuery(ctx context.Context, auth domain.AuthContext, groups filters.Groups) (filters.Groups, map[string]float64, error) {
	groups, scores, err := s.rewriteSemantic(ctx, auth.Tenant, groups)
	if err != nil {
		return nil, nil, err
	}
	groups = s.resolver.RewriteFilters(auth, domain.CapabilityRead, groups)
	groups, err = s.resolveParentPredicates(ctx, auth.Tenant, groups)
	if err != nil {
		return nil, nil, err
	}
	return groups, scores, nil
}

// rewriteSemantic replaces :content predicates with uuid membership over the
// vector search result. Without the semantic plane the predicate degrades to
// a fulltext match.
func (s *service) rewriteSemantic(ctx context.Context, tenant string, groups filters.Groups) (filters.Groups, map[string]float64, error) {
	var scores map[string]float64

	out := make(filters.Groups, 0, len(groups))
	for _, group := range groups {
		rewritten := make(filters.Filters, 0, len(group))
		for _, f := range group {
			if f.Field != filters.ContentField {
				rewritten = append(rewritten, f)
				continue
			}
			query, _ := f.Value.(string)

			if s.vectors == nil || s.embedder == nil {
				rewritten = append(rewritten, filters.Filter{
					Field:    "fulltext",
					Operator: filters.OpSemantic,
					Value:    query,
				})
				continue
			}

			matches, err := s.semanticSearch(ctx, tenant, query)
			if err != nil {
				// The semantic plane is best-effort; degrade rather than
				// fail the whole query.
				s.logger.Warn("semantic search failed", zap.Error(err))
				rewritten = append(rewritten, filters.Filter{
					Field:    "fulltext",
					Operator: filters.OpSemantic,
					Value:    query,
				})
				continue
			}

			uuids := make([]any, 0, len(matches))
			if scores == nil {
				scores = make(map[string]float64, len(matches))
			}
			for _, m := range matches {
				uuids = append(uuids, m.NodeUUID)
				scores[m.NodeUUID] = m.Score
			}
			rewritten = append(rewritten, filters.Filter{
				Field:    "uuid",
				Operator: filters.OpIn,
				Value:    uuids,
			})
		}
		out = append(out, rewritten)
	}
	return out, scores, nil
}

// scoresFor keeps only the scores of nodes actually returned; vector matches
// filtered out by permissions or paging carry no score.
func scoresFor(scores map[string]float64, nodes []*domain.Node) map[string]float64 {
	if scores == nil {
		return nil
	}
	kept := make(map[string]float64, len(nodes))
	for _, n := range nodes {
		if score, ok := scores[n.UUID]; ok {
			kept[n.UUID] = score
		}
	}
	return kept
}

// semanticSearch embeds the query and asks the vector database for the
// nearest nodes.
func (s *service) semanticSearch(ctx context.Context, tenant, query string) ([]repository.VectorMatch, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	if s.metrics != nil {
		s.metrics.VectorSearches.Inc()
	}
	return s.vectors.Search(ctx, tenant, vectors[0], semanticTopK)
}

// resolveParentPredicates runs the @ sub-queries: for each conjunction the
// @-prefixed predicates select matching folders, and the conjunction keeps a
// parent membership check over the found uuids. Zero matching folders leave
// an unsatisfiable membership, so the conjunction contributes nothing.
func (s *service) resolveParentPredicates(ctx context.Context, tenant string, groups filters.Groups) (filters.Groups, error) {
	out := make(filters.Groups, 0, len(groups))
	for _, group := range groups {
		direct := make(filters.Filters, 0, len(group))
		sub := filters.Filters{{
			Field:    "mimetype",
			Operator: filters.OpEqual,
			Value:    domain.FolderMimetype,
		}}

		hasParentPredicates := false
		for _, f := range group {
			if !f.IsParentPredicate() {
				direct = append(direct, f)
				continue
			}
			hasParentPredicates = true
			sub = append(sub, filters.Filter{
				Field:    f.ParentField(),
				Operator: f.Operator,
				Value:    f.Value,
			})
		}
		if !hasParentPredicates {
			out = append(out, group)
			continue
		}

		uuids, err := s.folderUUIDs(ctx, tenant, sub)
		if err != nil {
			return nil, err
		}
		direct = append(direct, filters.Filter{
			Field:    "parent",
			Operator: filters.OpIn,
			Value:    uuids,
		})
		out = append(out, direct)
	}
	return out, nil
}

// folderUUIDs collects every folder matching the sub-query, built-ins
// included.
func (s *service) folderUUIDs(ctx context.Context, tenant string, sub filters.Filters) ([]any, error) {
	uuids := make([]any, 0)
	for _, builtin := range domain.BuiltinFolders() {
		if filters.Satisfies(sub, builtin.Resolver()) {
			uuids = append(uuids, builtin.UUID)
		}
	}

	page := repository.All()
	for {
		result, err := s.nodes.Filter(ctx, tenant, filters.Groups{sub}, page)
		if err != nil {
			return nil, err
		}
		for _, n := range result.Nodes {
			uuids = append(uuids, n.UUID)
		}
		if page.PageToken >= result.PageCount {
			return uuids, nil
		}
		page.PageToken++
	}
}
