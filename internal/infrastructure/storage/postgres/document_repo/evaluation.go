package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"cellhub/internal/core/id"
	"cellhub/internal/domain/tradein"
	"cellhub/internal/infrastructure/storage/postgres"
)

const evaluationTable = "doc_evaluations"

// EvaluationRepo implements tradein.Repository.
type EvaluationRepo struct {
	*BaseDocumentRepo[*tradein.Evaluation]
}

var _ tradein.Repository = (*EvaluationRepo)(nil)

// NewEvaluationRepo creates an evaluation repository.
func NewEvaluationRepo(txManager *postgres.TxManager) *EvaluationRepo {
	return &EvaluationRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			evaluationTable,
			postgres.ExtractDBColumns[tradein.Evaluation](),
			func() *tradein.Evaluation { return &tradein.Evaluation{} },
		),
	}
}

// List returns evaluations, optionally by status, newest first.
func (r *EvaluationRepo) List(ctx context.Context, status *tradein.Status) ([]*tradein.Evaluation, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("created_at DESC")
	if status != nil {
		q = q.Where(squirrel.Eq{"status": *status})
	}
	return selectList(ctx, r.BaseDocumentRepo, q)
}

// ListByCustomer returns a customer's evaluations, newest first.
func (r *EvaluationRepo) ListByCustomer(ctx context.Context, customerID id.ID) ([]*tradein.Evaluation, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"customer_id": customerID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("created_at DESC")
	return selectList(ctx, r.BaseDocumentRepo, q)
}
