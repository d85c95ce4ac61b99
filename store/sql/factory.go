package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-crm/exports"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds every CRM store over one bun database.
type RepositoryFactory struct {
	db         *bun.DB
	exportOpts []CustomerExportOption

	transactor          *Transactor
	jobStore            *JobStore
	userStore           *UserStore
	adminUserStore      *AdminUserStore
	couponStore         *CouponStore
	userTicketStore     *UserTicketStore
	customerExportStore *CustomerExportStore
}

func NewRepositoryFactory(exportOpts ...CustomerExportOption) *RepositoryFactory {
	return &RepositoryFactory{exportOpts: exportOpts}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, exportOpts ...CustomerExportOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(exportOpts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, exportOpts ...CustomerExportOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(exportOpts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB.
func (f *RepositoryFactory) BuildStores(persistenceClient any) (*RepositoryFactory, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.jobStore != nil && f.customerExportStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) Transactor() *Transactor {
	if f == nil {
		return nil
	}
	return f.transactor
}

func (f *RepositoryFactory) JobStore() *JobStore {
	if f == nil {
		return nil
	}
	return f.jobStore
}

func (f *RepositoryFactory) UserStore() *UserStore {
	if f == nil {
		return nil
	}
	return f.userStore
}

func (f *RepositoryFactory) AdminUserStore() *AdminUserStore {
	if f == nil {
		return nil
	}
	return f.adminUserStore
}

func (f *RepositoryFactory) CouponStore() *CouponStore {
	if f == nil {
		return nil
	}
	return f.couponStore
}

func (f *RepositoryFactory) UserTicketStore() *UserTicketStore {
	if f == nil {
		return nil
	}
	return f.userTicketStore
}

func (f *RepositoryFactory) CustomerExportStore() *CustomerExportStore {
	if f == nil {
		return nil
	}
	return f.customerExportStore
}

func (f *RepositoryFactory) ExportLister() exports.Lister {
	if f == nil || f.customerExportStore == nil {
		return nil
	}
	return f.customerExportStore
}

func (f *RepositoryFactory) initStores() error {
	var err error
	if f.transactor, err = NewTransactor(f.db); err != nil {
		return err
	}
	if f.jobStore, err = NewJobStore(f.db); err != nil {
		return err
	}
	if f.userStore, err = NewUserStore(f.db); err != nil {
		return err
	}
	if f.adminUserStore, err = NewAdminUserStore(f.db); err != nil {
		return err
	}
	if f.couponStore, err = NewCouponStore(f.db); err != nil {
		return err
	}
	if f.userTicketStore, err = NewUserTicketStore(f.db); err != nil {
		return err
	}
	if f.customerExportStore, err = NewCustomerExportStore(f.db, f.exportOpts...); err != nil {
		return err
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
