package counter

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
)

var _ Counter = (*DatastoreCounter)(nil)

type counterEntity struct {
	Count     int64     `datastore:"count"`
	UpdatedAt time.Time `datastore:"updatedAt,noindex"`
}

// DatastoreCounter has no native increment, so the read and the write share one
// transaction. A transaction that loses to a concurrent one is aborted before
// it commits and the client runs the function again, therefore an increment is
// never lost nor applied twice.
type DatastoreCounter struct {
	client *datastore.Client
	key    *datastore.Key
	now    func() time.Time
}

func NewDatastoreCounter(client *datastore.Client, kind, namespace string) *DatastoreCounter {
	key := datastore.NameKey(kind, Key, nil)
	key.Namespace = namespace

	return &DatastoreCounter{
		client: client,
		key:    key,
		now:    time.Now,
	}
}

func (c *DatastoreCounter) Get(ctx context.Context) (int64, error) {
	var rec counterEntity
	err := c.client.Get(ctx, c.key, &rec)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return 0, nil
	}
	if err != nil {
		return 0, storeError("datastore", "Get", err)
	}
	return rec.Count, nil
}

func (c *DatastoreCounter) Up(ctx context.Context) (int64, error) {
	var n int64
	_, err := c.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		// May run more than once; only the committed run counts.
		var rec counterEntity
		if err := tx.Get(c.key, &rec); err != nil && !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}

		rec.Count++
		rec.UpdatedAt = c.now().UTC()
		if _, err := tx.Put(c.key, &rec); err != nil {
			return err
		}

		n = rec.Count
		return nil
	})
	if err != nil {
		return 0, storeError("datastore", "RunInTransaction", err)
	}

	if n < 1 {
		return 0, &ResponseConstructionError{Source: "datastore", Reason: "count below 1 after increment"}
	}
	return n, nil
}

func (c *DatastoreCounter) Close() error {
	return c.client.Close()
}
