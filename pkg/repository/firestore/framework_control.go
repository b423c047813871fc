package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type frameworkControlDocument struct {
	ID                     int64     `firestore:"id"`
	FrameworkID            *int64    `firestore:"framework_id"`
	RequirementID          string    `firestore:"requirement_id"`
	Title                  string    `firestore:"title"`
	Description            string    `firestore:"description"`
	ImplementationStatus   string    `firestore:"implementation_status"`
	Priority               string    `firestore:"priority"`
	Domain                 string    `firestore:"domain"`
	Category               string    `firestore:"category"`
	Evidence               string    `firestore:"evidence"`
	TestingProcedure       string    `firestore:"testing_procedure"`
	ImplementationGuidance string    `firestore:"implementation_guidance"`
	CreatedAt              time.Time `firestore:"created_at"`
	UpdatedAt              time.Time `firestore:"updated_at"`
}

func newFrameworkControlDocument(c *model.FrameworkControl) *frameworkControlDocument {
	return &frameworkControlDocument{
		ID:                     c.ID,
		FrameworkID:            c.FrameworkID,
		RequirementID:          c.RequirementID,
		Title:                  c.Title,
		Description:            c.Description,
		ImplementationStatus:   string(c.ImplementationStatus),
		Priority:               string(c.Priority),
		Domain:                 c.Domain,
		Category:               c.Category,
		Evidence:               c.Evidence,
		TestingProcedure:       c.TestingProcedure,
		ImplementationGuidance: c.ImplementationGuidance,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
	}
}

func (d *frameworkControlDocument) toModel() *model.FrameworkControl {
	return &model.FrameworkControl{
		ID:                     d.ID,
		FrameworkID:            d.FrameworkID,
		RequirementID:          d.RequirementID,
		Title:                  d.Title,
		Description:            d.Description,
		ImplementationStatus:   types.ImplementationStatus(d.ImplementationStatus),
		Priority:               types.Priority(d.Priority),
		Domain:                 d.Domain,
		Category:               d.Category,
		Evidence:               d.Evidence,
		TestingProcedure:       d.TestingProcedure,
		ImplementationGuidance: d.ImplementationGuidance,
		CreatedAt:              d.CreatedAt,
		UpdatedAt:              d.UpdatedAt,
	}
}

type frameworkControlRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newFrameworkControlRepository(client *firestore.Client) *frameworkControlRepository {
	return &frameworkControlRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *frameworkControlRepository) controlsCollection() string {
	return collectionName(r.collectionPrefix, "framework_controls")
}

func (r *frameworkControlRepository) counterRef() *firestore.DocumentRef {
	return r.client.Collection(collectionName(r.collectionPrefix, "counters")).Doc("framework_control_counter")
}

func (r *frameworkControlRepository) Create(ctx context.Context, control *model.FrameworkControl) (*model.FrameworkControl, error) {
	var doc *frameworkControlDocument

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		id, err := nextCounterValue(tx, r.counterRef())
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		doc = newFrameworkControlDocument(control)
		doc.ID = id
		doc.CreatedAt = now
		doc.UpdatedAt = now

		if err := tx.Set(r.counterRef(), map[string]any{"value": id}); err != nil {
			return goerr.Wrap(err, "failed to update counter")
		}
		return tx.Create(r.client.Collection(r.controlsCollection()).Doc(intDocID(id)), doc)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create framework control")
	}

	return doc.toModel(), nil
}

func (r *frameworkControlRepository) Get(ctx context.Context, id int64) (*model.FrameworkControl, error) {
	snap, err := r.client.Collection(r.controlsCollection()).Doc(intDocID(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "framework control not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get framework control", goerr.V("id", id))
	}

	var doc frameworkControlDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal framework control", goerr.V("id", id))
	}
	return doc.toModel(), nil
}

func (r *frameworkControlRepository) query(ctx context.Context, q firestore.Query) ([]*model.FrameworkControl, error) {
	controls := make([]*model.FrameworkControl, 0)
	err := collectDocs(q.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc frameworkControlDocument
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal framework control")
		}
		controls = append(controls, doc.toModel())
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(controls, func(i, j int) bool { return controls[i].ID < controls[j].ID })
	return controls, nil
}

func (r *frameworkControlRepository) List(ctx context.Context) ([]*model.FrameworkControl, error) {
	controls, err := r.query(ctx, r.client.Collection(r.controlsCollection()).Query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list framework controls")
	}
	return controls, nil
}

func (r *frameworkControlRepository) ListByFramework(ctx context.Context, frameworkID int64, domain string) ([]*model.FrameworkControl, error) {
	q := r.client.Collection(r.controlsCollection()).Where("framework_id", "==", frameworkID)
	if domain != "" {
		q = q.Where("domain", "==", domain)
	}

	controls, err := r.query(ctx, q)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list framework controls", goerr.V("frameworkID", frameworkID))
	}
	return controls, nil
}

func (r *frameworkControlRepository) Update(ctx context.Context, control *model.FrameworkControl) (*model.FrameworkControl, error) {
	docRef := r.client.Collection(r.controlsCollection()).Doc(intDocID(control.ID))
	var updated *frameworkControlDocument

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "framework control not found", goerr.V("id", control.ID))
			}
			return goerr.Wrap(err, "failed to get framework control", goerr.V("id", control.ID))
		}
		var existing frameworkControlDocument
		if err := snap.DataTo(&existing); err != nil {
			return goerr.Wrap(err, "failed to unmarshal framework control", goerr.V("id", control.ID))
		}

		updated = newFrameworkControlDocument(control)
		updated.ID = existing.ID
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now().UTC()
		return tx.Set(docRef, updated)
	})
	if err != nil {
		return nil, err
	}

	return updated.toModel(), nil
}

func (r *frameworkControlRepository) Delete(ctx context.Context, id int64) error {
	docRef := r.client.Collection(r.controlsCollection()).Doc(intDocID(id))
	if _, err := docRef.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "framework control not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to delete framework control", goerr.V("id", id))
	}
	return nil
}

func (r *frameworkControlRepository) UnassignFramework(ctx context.Context, frameworkID int64) error {
	q := r.client.Collection(r.controlsCollection()).Where("framework_id", "==", frameworkID)
	bulkWriter := r.client.BulkWriter(ctx)

	now := time.Now().UTC()
	err := collectDocs(q.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		if _, err := bulkWriter.Update(snap.Ref, []firestore.Update{
			{Path: "framework_id", Value: nil},
			{Path: "updated_at", Value: now},
		}); err != nil {
			return goerr.Wrap(err, "failed to unassign framework control", goerr.V("docID", snap.Ref.ID))
		}
		return nil
	})
	bulkWriter.End()

	if err != nil {
		return goerr.Wrap(err, "failed to unassign framework controls", goerr.V("frameworkID", frameworkID))
	}
	return nil
}
