package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type riskDocument struct {
	ID                 int64     `firestore:"id"`
	RiskID             string    `firestore:"risk_id"`
	Title              string    `firestore:"title"`
	Description        string    `firestore:"description"`
	InherentLikelihood string    `firestore:"inherent_likelihood"`
	InherentImpact     string    `firestore:"inherent_impact"`
	ResidualLikelihood string    `firestore:"residual_likelihood"`
	ResidualImpact     string    `firestore:"residual_impact"`
	Treatment          string    `firestore:"treatment"`
	Threats            string    `firestore:"threats"`
	Assets             string    `firestore:"assets"`
	BusinessUnit       string    `firestore:"business_unit"`
	RiskOwner          string    `firestore:"risk_owner"`
	Creator            string    `firestore:"creator"`
	CreatedAt          time.Time `firestore:"created_at"`
	UpdatedAt          time.Time `firestore:"updated_at"`
}

func newRiskDocument(r *model.Risk) *riskDocument {
	return &riskDocument{
		ID:                 r.ID,
		RiskID:             r.RiskID,
		Title:              r.Title,
		Description:        r.Description,
		InherentLikelihood: string(r.InherentLikelihood),
		InherentImpact:     string(r.InherentImpact),
		ResidualLikelihood: string(r.ResidualLikelihood),
		ResidualImpact:     string(r.ResidualImpact),
		Treatment:          string(r.Treatment),
		Threats:            r.Threats,
		Assets:             r.Assets,
		BusinessUnit:       r.BusinessUnit,
		RiskOwner:          r.RiskOwner,
		Creator:            r.Creator,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func (d *riskDocument) toModel() *model.Risk {
	return &model.Risk{
		ID:                 d.ID,
		RiskID:             d.RiskID,
		Title:              d.Title,
		Description:        d.Description,
		InherentLikelihood: types.RiskLevel(d.InherentLikelihood),
		InherentImpact:     types.RiskLevel(d.InherentImpact),
		ResidualLikelihood: types.RiskLevel(d.ResidualLikelihood),
		ResidualImpact:     types.RiskLevel(d.ResidualImpact),
		Treatment:          types.Treatment(d.Treatment),
		Threats:            d.Threats,
		Assets:             d.Assets,
		BusinessUnit:       d.BusinessUnit,
		RiskOwner:          d.RiskOwner,
		Creator:            d.Creator,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

type riskRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newRiskRepository(client *firestore.Client) *riskRepository {
	return &riskRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *riskRepository) risksCollection() string {
	return collectionName(r.collectionPrefix, "risks")
}

func (r *riskRepository) riskControlsCollection() string {
	return collectionName(r.collectionPrefix, "risk_controls")
}

func (r *riskRepository) counterRef() *firestore.DocumentRef {
	return r.client.Collection(collectionName(r.collectionPrefix, "counters")).Doc("risk_counter")
}

func (r *riskRepository) riskIDQuery(riskID string) firestore.Query {
	return r.client.Collection(r.risksCollection()).Where("risk_id", "==", riskID)
}

func (r *riskRepository) Create(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	var doc *riskDocument

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		id, err := nextCounterValue(tx, r.counterRef())
		if err != nil {
			return err
		}
		taken, err := keyTaken(tx, r.riskIDQuery(risk.RiskID), "")
		if err != nil {
			return err
		}
		if taken {
			return goerr.Wrap(ErrDuplicateKey, "riskId already exists", goerr.V("riskID", risk.RiskID))
		}

		now := time.Now().UTC()
		doc = newRiskDocument(risk)
		doc.ID = id
		doc.CreatedAt = now
		doc.UpdatedAt = now

		if err := tx.Set(r.counterRef(), map[string]any{"value": id}); err != nil {
			return goerr.Wrap(err, "failed to update counter")
		}
		return tx.Create(r.client.Collection(r.risksCollection()).Doc(intDocID(id)), doc)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, err
		}
		return nil, goerr.Wrap(err, "failed to create risk", goerr.V("riskID", risk.RiskID))
	}

	return doc.toModel(), nil
}

func (r *riskRepository) Get(ctx context.Context, id int64) (*model.Risk, error) {
	snap, err := r.client.Collection(r.risksCollection()).Doc(intDocID(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "risk not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V("id", id))
	}

	var doc riskDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal risk", goerr.V("id", id))
	}
	return doc.toModel(), nil
}

func (r *riskRepository) GetByRiskID(ctx context.Context, riskID string) (*model.Risk, error) {
	var found *model.Risk
	err := collectDocs(r.riskIDQuery(riskID).Limit(1).Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc riskDocument
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal risk")
		}
		found = doc.toModel()
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V("riskID", riskID))
	}
	if found == nil {
		return nil, goerr.Wrap(ErrNotFound, "risk not found", goerr.V("riskID", riskID))
	}
	return found, nil
}

func (r *riskRepository) List(ctx context.Context, filter model.RiskFilter) ([]*model.Risk, error) {
	q := r.client.Collection(r.risksCollection()).Query
	if filter.Treatment != "" {
		q = q.Where("treatment", "==", string(filter.Treatment))
	}

	risks := make([]*model.Risk, 0)
	err := collectDocs(q.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc riskDocument
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal risk")
		}
		risk := doc.toModel()
		if filter.Match(risk) {
			risks = append(risks, risk)
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risks")
	}

	sort.Slice(risks, func(i, j int) bool { return risks[i].ID < risks[j].ID })
	return risks, nil
}

func (r *riskRepository) Update(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	docRef := r.client.Collection(r.risksCollection()).Doc(intDocID(risk.ID))
	var updated *riskDocument

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "risk not found", goerr.V("id", risk.ID))
			}
			return goerr.Wrap(err, "failed to get risk", goerr.V("id", risk.ID))
		}
		var existing riskDocument
		if err := snap.DataTo(&existing); err != nil {
			return goerr.Wrap(err, "failed to unmarshal risk", goerr.V("id", risk.ID))
		}

		taken, err := keyTaken(tx, r.riskIDQuery(risk.RiskID), docRef.ID)
		if err != nil {
			return err
		}
		if taken {
			return goerr.Wrap(ErrDuplicateKey, "riskId already exists", goerr.V("riskID", risk.RiskID))
		}

		updated = newRiskDocument(risk)
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

// Delete removes the risk and its link documents in one transaction
func (r *riskRepository) Delete(ctx context.Context, id int64) error {
	docRef := r.client.Collection(r.risksCollection()).Doc(intDocID(id))
	linksQuery := r.client.Collection(r.riskControlsCollection()).Where("risk_id", "==", id)

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(docRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "risk not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get risk", goerr.V("id", id))
		}

		links, err := tx.Documents(linksQuery).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to get risk controls", goerr.V("id", id))
		}

		for _, link := range links {
			if err := tx.Delete(link.Ref); err != nil {
				return goerr.Wrap(err, "failed to delete risk control", goerr.V("docID", link.Ref.ID))
			}
		}
		if err := tx.Delete(docRef); err != nil {
			return goerr.Wrap(err, "failed to delete risk", goerr.V("id", id))
		}
		return nil
	})
}

// linkDocID builds a deterministic document ID so the same link is never stored twice
func linkDocID(riskID int64, controlID types.ControlID) string {
	return strings.Join([]string{intDocID(riskID), string(controlID)}, "_")
}
