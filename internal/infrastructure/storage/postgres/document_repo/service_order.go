package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"cellhub/internal/core/id"
	"cellhub/internal/domain/serviceorder"
	"cellhub/internal/infrastructure/storage/postgres"
)

const serviceOrderTable = "doc_service_orders"

// ServiceOrderRepo implements serviceorder.Repository.
type ServiceOrderRepo struct {
	*BaseDocumentRepo[*serviceorder.Order]
}

var _ serviceorder.Repository = (*ServiceOrderRepo)(nil)

// NewServiceOrderRepo creates a service order repository.
func NewServiceOrderRepo(txManager *postgres.TxManager) *ServiceOrderRepo {
	return &ServiceOrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			serviceOrderTable,
			postgres.ExtractDBColumns[serviceorder.Order](),
			func() *serviceorder.Order { return &serviceorder.Order{} },
		),
	}
}

// List returns orders filtered by status and internal flag, newest first.
func (r *ServiceOrderRepo) List(ctx context.Context, status *serviceorder.Status, internal *bool) ([]*serviceorder.Order, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("created_at DESC")
	if status != nil {
		q = q.Where(squirrel.Eq{"status": *status})
	}
	if internal != nil {
		q = q.Where(squirrel.Eq{"is_internal": *internal})
	}
	return selectList(ctx, r.BaseDocumentRepo, q)
}

// ListByCustomer returns a customer's orders, newest first.
func (r *ServiceOrderRepo) ListByCustomer(ctx context.Context, customerID id.ID) ([]*serviceorder.Order, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"customer_id": customerID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("created_at DESC")
	return selectList(ctx, r.BaseDocumentRepo, q)
}
