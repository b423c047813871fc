package firestore

import (
	"context"
	"errors"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type controlMappingDocument struct {
	Standard  string `firestore:"standard"`
	Reference string `firestore:"reference"`
}

type controlDocument struct {
	ID          string                   `firestore:"id"`
	Code        string                   `firestore:"control_id"`
	Source      string                   `firestore:"source"`
	Name        string                   `firestore:"name"`
	Description string                   `firestore:"description"`
	Domain      string                   `firestore:"domain"`
	Mappings    []controlMappingDocument `firestore:"mappings"`
	CreatedAt   time.Time                `firestore:"created_at"`
	UpdatedAt   time.Time                `firestore:"updated_at"`
}

func newControlDocument(c *model.Control) *controlDocument {
	doc := &controlDocument{
		ID:          string(c.ID),
		Code:        c.Code,
		Source:      c.Source,
		Name:        c.Name,
		Description: c.Description,
		Domain:      c.Domain,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	for _, m := range c.Mappings {
		doc.Mappings = append(doc.Mappings, controlMappingDocument{Standard: m.Standard, Reference: m.Reference})
	}
	return doc
}

func (d *controlDocument) toModel() *model.Control {
	c := &model.Control{
		ID:          types.ControlID(d.ID),
		Code:        d.Code,
		Source:      d.Source,
		Name:        d.Name,
		Description: d.Description,
		Domain:      d.Domain,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, m := range d.Mappings {
		c.Mappings = append(c.Mappings, model.ControlMapping{Standard: m.Standard, Reference: m.Reference})
	}
	return c
}

type controlRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newControlRepository(client *firestore.Client) *controlRepository {
	return &controlRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *controlRepository) controlsCollection() string {
	return collectionName(r.collectionPrefix, "controls")
}

func (r *controlRepository) codeQuery(code string) firestore.Query {
	return r.client.Collection(r.controlsCollection()).Where("control_id", "==", code)
}

func (r *controlRepository) Create(ctx context.Context, control *model.Control) (*model.Control, error) {
	doc := newControlDocument(control)
	if doc.ID == "" {
		doc.ID = string(types.NewControlID())
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	docRef := r.client.Collection(r.controlsCollection()).Doc(doc.ID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		taken, err := keyTaken(tx, r.codeQuery(doc.Code), "")
		if err != nil {
			return err
		}
		if taken {
			return goerr.Wrap(ErrDuplicateKey, "control code already exists", goerr.V("code", doc.Code))
		}
		return tx.Create(docRef, doc)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, err
		}
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.Wrap(ErrDuplicateKey, "control already exists", goerr.V("id", doc.ID))
		}
		return nil, goerr.Wrap(err, "failed to create control", goerr.V("code", doc.Code))
	}

	return doc.toModel(), nil
}

func (r *controlRepository) Get(ctx context.Context, id types.ControlID) (*model.Control, error) {
	if id == "" {
		return nil, goerr.Wrap(ErrNotFound, "control not found", goerr.V("id", id))
	}

	snap, err := r.client.Collection(r.controlsCollection()).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "control not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get control", goerr.V("id", id))
	}

	var doc controlDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal control", goerr.V("id", id))
	}
	return doc.toModel(), nil
}

func (r *controlRepository) GetByCode(ctx context.Context, code string) (*model.Control, error) {
	var found *model.Control
	err := collectDocs(r.codeQuery(code).Limit(1).Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc controlDocument
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal control")
		}
		found = doc.toModel()
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get control", goerr.V("code", code))
	}
	if found == nil {
		return nil, goerr.Wrap(ErrNotFound, "control not found", goerr.V("code", code))
	}
	return found, nil
}

// List pushes exact-match filters down to Firestore and applies the substring search in memory
func (r *controlRepository) List(ctx context.Context, filter model.ControlFilter) ([]*model.Control, error) {
	q := r.client.Collection(r.controlsCollection()).Query
	if filter.Domain != "" {
		q = q.Where("domain", "==", filter.Domain)
	}
	if filter.Source != "" {
		q = q.Where("source", "==", filter.Source)
	}

	controls := make([]*model.Control, 0)
	err := collectDocs(q.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc controlDocument
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal control")
		}
		c := doc.toModel()
		if filter.Match(c) {
			controls = append(controls, c)
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list controls")
	}

	sort.Slice(controls, func(i, j int) bool { return controls[i].Code < controls[j].Code })
	return controls, nil
}

func (r *controlRepository) Update(ctx context.Context, control *model.Control) (*model.Control, error) {
	docRef := r.client.Collection(r.controlsCollection()).Doc(string(control.ID))
	var updated *controlDocument

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "control not found", goerr.V("id", control.ID))
			}
			return goerr.Wrap(err, "failed to get control", goerr.V("id", control.ID))
		}
		var existing controlDocument
		if err := snap.DataTo(&existing); err != nil {
			return goerr.Wrap(err, "failed to unmarshal control", goerr.V("id", control.ID))
		}

		taken, err := keyTaken(tx, r.codeQuery(control.Code), docRef.ID)
		if err != nil {
			return err
		}
		if taken {
			return goerr.Wrap(ErrDuplicateKey, "control code already exists", goerr.V("code", control.Code))
		}

		updated = newControlDocument(control)
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now().UTC()
		return tx.Set(docRef, updated)
	})
	if err != nil {
		return nil, err
	}

	return updated.toModel(), nil
}

func (r *controlRepository) Count(ctx context.Context) (int, error) {
	result, err := r.client.Collection(r.controlsCollection()).NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count controls")
	}

	v, ok := result["total"]
	if !ok {
		return 0, goerr.New("count result missing")
	}
	// The SDK returns a protobuf Value holding an integer
	if pv, ok := v.(interface{ GetIntegerValue() int64 }); ok {
		return int(pv.GetIntegerValue()), nil
	}
	return 0, goerr.New("unexpected count result type", goerr.V("value", v))
}
