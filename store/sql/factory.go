package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	webhookEventStore *WebhookEventStore
	customerStore     *CustomerStore
	orderStore        *OrderStore
	txRunner          *TxRunner
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.txRunner != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) WebhookEventStore() *WebhookEventStore {
	if f == nil {
		return nil
	}
	return f.webhookEventStore
}

func (f *RepositoryFactory) CustomerStore() *CustomerStore {
	if f == nil {
		return nil
	}
	return f.customerStore
}

func (f *RepositoryFactory) OrderStore() *OrderStore {
	if f == nil {
		return nil
	}
	return f.orderStore
}

func (f *RepositoryFactory) TxRunner() *TxRunner {
	if f == nil {
		return nil
	}
	return f.txRunner
}

func (f *RepositoryFactory) initStores() error {
	events, err := NewWebhookEventStore(f.db)
	if err != nil {
		return err
	}
	customers, err := NewCustomerStore(f.db)
	if err != nil {
		return err
	}
	orders, err := NewOrderStore(f.db)
	if err != nil {
		return err
	}
	f.webhookEventStore = events
	f.customerStore = customers
	f.orderStore = orders
	f.txRunner = &TxRunner{
		db:        f.db,
		events:    events,
		customers: customers,
		orders:    orders,
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
