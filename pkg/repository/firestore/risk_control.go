package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
)

type riskControlDocument struct {
	RiskID    int64     `firestore:"risk_id"`
	ControlID string    `firestore:"control_id"`
	CreatedAt time.Time `firestore:"created_at"`
	CreatedBy string    `firestore:"created_by"`
	Notes     string    `firestore:"notes"`
}

func (d *riskControlDocument) toModel() *model.RiskControl {
	return &model.RiskControl{
		RiskID:    d.RiskID,
		ControlID: types.ControlID(d.ControlID),
		CreatedAt: d.CreatedAt,
		CreatedBy: d.CreatedBy,
		Notes:     d.Notes,
	}
}

type riskControlRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newRiskControlRepository(client *firestore.Client) *riskControlRepository {
	return &riskControlRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *riskControlRepository) riskControlsCollection() string {
	return collectionName(r.collectionPrefix, "risk_controls")
}

func (r *riskControlRepository) controlsCollection() string {
	return collectionName(r.collectionPrefix, "controls")
}

// Replace swaps the link set of a risk inside one transaction. Every control must exist in the catalog.
func (r *riskControlRepository) Replace(ctx context.Context, riskID int64, controlIDs []types.ControlID, createdBy string) error {
	ids := model.UniqueControlIDs(controlIDs)
	linksQuery := r.client.Collection(r.riskControlsCollection()).Where("risk_id", "==", riskID)

	controlRefs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		controlRefs = append(controlRefs, r.client.Collection(r.controlsCollection()).Doc(string(id)))
	}

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(linksQuery).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to get risk controls", goerr.V("riskID", riskID))
		}

		if len(controlRefs) > 0 {
			snaps, err := tx.GetAll(controlRefs)
			if err != nil {
				return goerr.Wrap(err, "failed to get controls", goerr.V("riskID", riskID))
			}
			for i, snap := range snaps {
				if !snap.Exists() {
					return goerr.Wrap(ErrNotFound, "control not found", goerr.V("controlID", ids[i]))
				}
			}
		}

		for _, doc := range existing {
			if err := tx.Delete(doc.Ref); err != nil {
				return goerr.Wrap(err, "failed to delete risk control", goerr.V("docID", doc.Ref.ID))
			}
		}

		now := time.Now().UTC()
		for _, id := range ids {
			ref := r.client.Collection(r.riskControlsCollection()).Doc(linkDocID(riskID, id))
			if err := tx.Set(ref, &riskControlDocument{
				RiskID:    riskID,
				ControlID: string(id),
				CreatedAt: now,
				CreatedBy: createdBy,
			}); err != nil {
				return goerr.Wrap(err, "failed to create risk control", goerr.V("controlID", id))
			}
		}
		return nil
	})
}

func (r *riskControlRepository) ListByRisk(ctx context.Context, riskID int64) ([]*model.RiskControl, error) {
	links, err := r.ListByRisks(ctx, []int64{riskID})
	if err != nil {
		return nil, err
	}
	return links[riskID], nil
}

func (r *riskControlRepository) ListByRisks(ctx context.Context, riskIDs []int64) (map[int64][]*model.RiskControl, error) {
	result := make(map[int64][]*model.RiskControl, len(riskIDs))
	for _, riskID := range riskIDs {
		result[riskID] = make([]*model.RiskControl, 0)
	}

	// Firestore has a limit of 30 items in an IN query, so we need to batch
	const batchSize = 30
	for i := 0; i < len(riskIDs); i += batchSize {
		end := i + batchSize
		if end > len(riskIDs) {
			end = len(riskIDs)
		}

		q := r.client.Collection(r.riskControlsCollection()).Where("risk_id", "in", riskIDs[i:end])
		err := collectDocs(q.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
			var doc riskControlDocument
			if err := snap.DataTo(&doc); err != nil {
				return goerr.Wrap(err, "failed to unmarshal risk control")
			}
			result[doc.RiskID] = append(result[doc.RiskID], doc.toModel())
			return nil
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list risk controls", goerr.V("riskIDs", riskIDs[i:end]))
		}
	}

	for _, links := range result {
		sort.Slice(links, func(i, j int) bool { return links[i].ControlID < links[j].ControlID })
	}
	return result, nil
}

func (r *riskControlRepository) ListRiskIDsByControl(ctx context.Context, controlID types.ControlID) ([]int64, error) {
	q := r.client.Collection(r.riskControlsCollection()).Where("control_id", "==", string(controlID))

	riskIDs := make([]int64, 0)
	err := collectDocs(q.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc riskControlDocument
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal risk control")
		}
		riskIDs = append(riskIDs, doc.RiskID)
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risks by control", goerr.V("controlID", controlID))
	}

	sort.Slice(riskIDs, func(i, j int) bool { return riskIDs[i] < riskIDs[j] })
	return riskIDs, nil
}

func (r *riskControlRepository) DeleteByRisk(ctx context.Context, riskID int64) error {
	query := r.client.Collection(r.riskControlsCollection()).Where("risk_id", "==", riskID)
	bulkWriter := r.client.BulkWriter(ctx)

	err := collectDocs(query.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		if _, err := bulkWriter.Delete(snap.Ref); err != nil {
			return goerr.Wrap(err, "failed to delete risk control", goerr.V("riskID", riskID))
		}
		return nil
	})
	bulkWriter.End()

	if err != nil {
		return goerr.Wrap(err, "failed to delete risk controls", goerr.V("riskID", riskID))
	}
	return nil
}
