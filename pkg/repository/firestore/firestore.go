package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound     = interfaces.ErrNotFound
	ErrDuplicateKey = interfaces.ErrDuplicateKey
)

type Firestore struct {
	client           *firestore.Client
	framework        *frameworkRepository
	frameworkControl *frameworkControlRepository
	control          *controlRepository
	risk             *riskRepository
	riskControl      *riskControlRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.framework.collectionPrefix = prefix
		f.frameworkControl.collectionPrefix = prefix
		f.control.collectionPrefix = prefix
		f.risk.collectionPrefix = prefix
		f.riskControl.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:           client,
		framework:        newFrameworkRepository(client),
		frameworkControl: newFrameworkControlRepository(client),
		control:          newControlRepository(client),
		risk:             newRiskRepository(client),
		riskControl:      newRiskControlRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Framework() interfaces.FrameworkRepository {
	return f.framework
}

func (f *Firestore) FrameworkControl() interfaces.FrameworkControlRepository {
	return f.frameworkControl
}

func (f *Firestore) Control() interfaces.ControlRepository {
	return f.control
}

func (f *Firestore) Risk() interfaces.RiskRepository {
	return f.risk
}

func (f *Firestore) RiskControl() interfaces.RiskControlRepository {
	return f.riskControl
}

// Ping reads a single document to confirm the database is reachable
func (f *Firestore) Ping(ctx context.Context) error {
	iter := f.client.Collection(f.framework.frameworksCollection()).Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return goerr.Wrap(err, "failed to ping firestore")
	}
	return nil
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func collectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}

func intDocID(id int64) string {
	return fmt.Sprintf("%d", id)
}

// nextCounterValue reads a counter document inside tx and returns the next value.
// The caller must write it back with tx.Set after all other reads.
func nextCounterValue(tx *firestore.Transaction, counterRef *firestore.DocumentRef) (int64, error) {
	doc, err := tx.Get(counterRef)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 1, nil
		}
		return 0, goerr.Wrap(err, "failed to get counter")
	}

	currentValue, err := doc.DataAt("value")
	if err != nil {
		return 0, goerr.Wrap(err, "failed to get counter value")
	}

	val, ok := currentValue.(int64)
	if !ok {
		return 0, goerr.New("counter value is not of type int64", goerr.V("value", currentValue))
	}
	return val + 1, nil
}

// keyTaken reports whether another document in q already holds a unique key.
// exceptDocID excludes the document being updated.
func keyTaken(tx *firestore.Transaction, q firestore.Query, exceptDocID string) (bool, error) {
	docs, err := tx.Documents(q.Limit(2)).GetAll()
	if err != nil {
		return false, goerr.Wrap(err, "failed to check unique key")
	}
	for _, doc := range docs {
		if doc.Ref.ID != exceptDocID {
			return true, nil
		}
	}
	return false, nil
}

// collectDocs drains an iterator, decoding every document with decode
func collectDocs(iter *firestore.DocumentIterator, decode func(*firestore.DocumentSnapshot) error) error {
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate documents")
		}
		if err := decode(doc); err != nil {
			return err
		}
	}
}
