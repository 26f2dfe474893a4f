package bunexec

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-finder/query"
)

// Criteria translates plan into go-repository-bun select criteria: one WHERE
// per filter, then ordering, projection and limit.
func Criteria(plan query.Plan) []repository.SelectCriteria {
	criteria := make([]repository.SelectCriteria, 0, len(plan.Filters)+3)

	for _, f := range plan.Filters {
		criteria = append(criteria, filterCriteria(f))
	}

	if plan.Order != nil {
		field := plan.Order.Field
		expr := "? ASC"
		if plan.Order.Direction == query.Descending {
			expr = "? DESC"
		}
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr(expr, bun.Ident(field))
		})
	}

	if !plan.AllColumns() {
		columns := append([]string(nil), plan.Columns...)
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column(columns...)
		})
	}

	if plan.Limit > 0 {
		limit := plan.Limit
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Limit(limit)
		})
	}

	return criteria
}

func filterCriteria(f query.Filter) repository.SelectCriteria {
	if f.Mode == query.InSet {
		return func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("? IN (?)", bun.Ident(f.Field), bun.In(f.Values))
		}
	}
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("? = ?", bun.Ident(f.Field), f.Value)
	}
}
