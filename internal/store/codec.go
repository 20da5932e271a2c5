package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/creator-credit/internal/model"
)

// row is the column form of an Evaluation shared by both drivers.
type row struct {
	ID            string
	ChannelID     string
	LoanRequested int64
	Status        string
	Report        []byte
	Decision      []byte
	Error         string
	CreatedAt     time.Time
}

// prepare fills the ID and timestamp of a new evaluation and encodes it.
func prepare(ev *model.Evaluation) (row, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if !ev.Status.Valid() {
		return row{}, eris.Errorf("store: invalid status %q", ev.Status)
	}

	r := row{
		ID:            ev.ID,
		ChannelID:     ev.ChannelID,
		LoanRequested: ev.LoanRequested,
		Status:        string(ev.Status),
		Error:         ev.Error,
		CreatedAt:     ev.CreatedAt.UTC(),
	}
	var err error
	if ev.Report != nil {
		if r.Report, err = json.Marshal(ev.Report); err != nil {
			return row{}, eris.Wrap(err, "store: marshal report")
		}
	}
	if ev.Decision != nil {
		if r.Decision, err = json.Marshal(ev.Decision); err != nil {
			return row{}, eris.Wrap(err, "store: marshal decision")
		}
	}
	return r, nil
}

// evaluation decodes a row. The spending limit is derived from the decision.
func (r row) evaluation() (*model.Evaluation, error) {
	ev := &model.Evaluation{
		ID:            r.ID,
		ChannelID:     r.ChannelID,
		LoanRequested: r.LoanRequested,
		Status:        model.EvaluationStatus(r.Status),
		Error:         r.Error,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if len(r.Report) > 0 {
		ev.Report = &model.ScoreReport{}
		if err := json.Unmarshal(r.Report, ev.Report); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal report %s", r.ID)
		}
	}
	if len(r.Decision) > 0 {
		ev.Decision = &model.Decision{}
		if err := json.Unmarshal(r.Decision, ev.Decision); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal decision %s", r.ID)
		}
		ev.SpendingLimit = ev.Decision.SpendingLimit()
	}
	return ev, nil
}
