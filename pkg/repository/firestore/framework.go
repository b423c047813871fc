package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type progressDocument struct {
	TotalControls                int     `firestore:"total_controls"`
	ImplementedControls          int     `firestore:"implemented_controls"`
	PartiallyImplementedControls int     `firestore:"partially_implemented_controls"`
	NotImplementedControls       int     `firestore:"not_implemented_controls"`
	CompletionPercentage         float64 `firestore:"completion_percentage"`
	CriticalControls             int     `firestore:"critical_controls"`
	HighControls                 int     `firestore:"high_controls"`
	MediumControls               int     `firestore:"medium_controls"`
	LowControls                  int     `firestore:"low_controls"`
}

type frameworkDocument struct {
	ID            int64            `firestore:"id"`
	Code          string           `firestore:"code"`
	Name          string           `firestore:"name"`
	Description   string           `firestore:"description"`
	Type          string           `firestore:"type"`
	Status        string           `firestore:"status"`
	Version       string           `firestore:"version"`
	Publisher     string           `firestore:"publisher"`
	EffectiveDate *time.Time       `firestore:"effective_date"`
	ReviewDate    *time.Time       `firestore:"review_date"`
	Owner         string           `firestore:"owner"`
	Industry      string           `firestore:"industry"`
	Tags          []string         `firestore:"tags"`
	CustomFields  map[string]any   `firestore:"custom_fields"`
	Progress      progressDocument `firestore:"progress"`
	CreatedAt     time.Time        `firestore:"created_at"`
	UpdatedAt     time.Time        `firestore:"updated_at"`
}

func newProgressDocument(p model.Progress) progressDocument {
	return progressDocument{
		TotalControls:                p.TotalControls,
		ImplementedControls:          p.ImplementedControls,
		PartiallyImplementedControls: p.PartiallyImplementedControls,
		NotImplementedControls:       p.NotImplementedControls,
		CompletionPercentage:         p.CompletionPercentage,
		CriticalControls:             p.RiskDistribution.Critical,
		HighControls:                 p.RiskDistribution.High,
		MediumControls:               p.RiskDistribution.Medium,
		LowControls:                  p.RiskDistribution.Low,
	}
}

func (d *progressDocument) toModel() model.Progress {
	return model.Progress{
		TotalControls:                d.TotalControls,
		ImplementedControls:          d.ImplementedControls,
		PartiallyImplementedControls: d.PartiallyImplementedControls,
		NotImplementedControls:       d.NotImplementedControls,
		CompletionPercentage:         d.CompletionPercentage,
		RiskDistribution: model.RiskDistribution{
			Critical: d.CriticalControls,
			High:     d.HighControls,
			Medium:   d.MediumControls,
			Low:      d.LowControls,
		},
	}
}

func newFrameworkDocument(f *model.Framework) *frameworkDocument {
	return &frameworkDocument{
		ID:            f.ID,
		Code:          f.Code,
		Name:          f.Name,
		Description:   f.Description,
		Type:          string(f.Type),
		Status:        string(f.Status),
		Version:       f.Version,
		Publisher:     f.Publisher,
		EffectiveDate: f.EffectiveDate,
		ReviewDate:    f.ReviewDate,
		Owner:         f.Owner,
		Industry:      f.Industry,
		Tags:          f.Tags,
		CustomFields:  f.CustomFields,
		Progress:      newProgressDocument(f.Progress),
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

func (d *frameworkDocument) toModel() *model.Framework {
	return &model.Framework{
		ID:            d.ID,
		Code:          d.Code,
		Name:          d.Name,
		Description:   d.Description,
		Type:          types.FrameworkType(d.Type),
		Status:        types.FrameworkStatus(d.Status),
		Version:       d.Version,
		Publisher:     d.Publisher,
		EffectiveDate: d.EffectiveDate,
		ReviewDate:    d.ReviewDate,
		Owner:         d.Owner,
		Industry:      d.Industry,
		Tags:          d.Tags,
		CustomFields:  d.CustomFields,
		Progress:      d.Progress.toModel(),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type frameworkRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newFrameworkRepository(client *firestore.Client) *frameworkRepository {
	return &frameworkRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *frameworkRepository) frameworksCollection() string {
	return collectionName(r.collectionPrefix, "frameworks")
}

func (r *frameworkRepository) counterRef() *firestore.DocumentRef {
	return r.client.Collection(collectionName(r.collectionPrefix, "counters")).Doc("framework_counter")
}

func (r *frameworkRepository) codeQuery(code string) firestore.Query {
	return r.client.Collection(r.frameworksCollection()).Where("code", "==", code)
}

func (r *frameworkRepository) Create(ctx context.Context, framework *model.Framework) (*model.Framework, error) {
	var doc *frameworkDocument

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		id, err := nextCounterValue(tx, r.counterRef())
		if err != nil {
			return err
		}
		taken, err := keyTaken(tx, r.codeQuery(framework.Code), "")
		if err != nil {
			return err
		}
		if taken {
			return goerr.Wrap(ErrDuplicateKey, "framework code already exists", goerr.V("code", framework.Code))
		}

		now := time.Now().UTC()
		doc = newFrameworkDocument(framework)
		doc.ID = id
		doc.CreatedAt = now
		doc.UpdatedAt = now

		if err := tx.Set(r.counterRef(), map[string]any{"value": id}); err != nil {
			return goerr.Wrap(err, "failed to update counter")
		}
		return tx.Create(r.client.Collection(r.frameworksCollection()).Doc(intDocID(id)), doc)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, err
		}
		return nil, goerr.Wrap(err, "failed to create framework", goerr.V("code", framework.Code))
	}

	return doc.toModel(), nil
}

func (r *frameworkRepository) Get(ctx context.Context, id int64) (*model.Framework, error) {
	snap, err := r.client.Collection(r.frameworksCollection()).Doc(intDocID(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "framework not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get framework", goerr.V("id", id))
	}

	var doc frameworkDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal framework", goerr.V("id", id))
	}
	return doc.toModel(), nil
}

func (r *frameworkRepository) GetByCode(ctx context.Context, code string) (*model.Framework, error) {
	var found *model.Framework
	err := collectDocs(r.codeQuery(code).Limit(1).Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc frameworkDocument
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal framework")
		}
		found = doc.toModel()
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get framework", goerr.V("code", code))
	}
	if found == nil {
		return nil, goerr.Wrap(ErrNotFound, "framework not found", goerr.V("code", code))
	}
	return found, nil
}

// List filters and pages in memory; Firestore has no substring or case-insensitive matching.
func (r *frameworkRepository) List(ctx context.Context, query model.FrameworkQuery) (*model.FrameworkPage, error) {
	var all []*model.Framework
	err := collectDocs(r.client.Collection(r.frameworksCollection()).Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc frameworkDocument
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal framework")
		}
		all = append(all, doc.toModel())
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list frameworks")
	}

	return query.Paginate(all), nil
}

func (r *frameworkRepository) Update(ctx context.Context, framework *model.Framework) (*model.Framework, error) {
	docRef := r.client.Collection(r.frameworksCollection()).Doc(intDocID(framework.ID))
	var updated *frameworkDocument

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "framework not found", goerr.V("id", framework.ID))
			}
			return goerr.Wrap(err, "failed to get framework", goerr.V("id", framework.ID))
		}
		var existing frameworkDocument
		if err := snap.DataTo(&existing); err != nil {
			return goerr.Wrap(err, "failed to unmarshal framework", goerr.V("id", framework.ID))
		}

		taken, err := keyTaken(tx, r.codeQuery(framework.Code), docRef.ID)
		if err != nil {
			return err
		}
		if taken {
			return goerr.Wrap(ErrDuplicateKey, "framework code already exists", goerr.V("code", framework.Code))
		}

		updated = newFrameworkDocument(framework)
		updated.ID = existing.ID
		updated.Progress = existing.Progress
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now().UTC()
		return tx.Set(docRef, updated)
	})
	if err != nil {
		return nil, err
	}

	return updated.toModel(), nil
}

func (r *frameworkRepository) UpdateProgress(ctx context.Context, id int64, progress model.Progress) error {
	docRef := r.client.Collection(r.frameworksCollection()).Doc(intDocID(id))
	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: "progress", Value: newProgressDocument(progress)},
		{Path: "updated_at", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "framework not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to update framework progress", goerr.V("id", id))
	}
	return nil
}

func (r *frameworkRepository) Delete(ctx context.Context, id int64) error {
	docRef := r.client.Collection(r.frameworksCollection()).Doc(intDocID(id))

	// Exists precondition turns a missing document into NotFound
	if _, err := docRef.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "framework not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to delete framework", goerr.V("id", id))
	}
	return nil
}
