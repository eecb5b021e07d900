package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/oppradar/internal/digest"
	"github.com/amishk599/oppradar/internal/harvester"
	"github.com/amishk599/oppradar/internal/model"
	"github.com/amishk599/oppradar/internal/scoring"
)

// State accumulates what each stage produced during one run. Stages add
// fields and never clear the ones before them.
type State struct {
	RunID      string
	StartedAt  time.Time
	Candidates []model.Candidate
	Classified []model.ClassifiedCompany
	Harvest    *harvester.Stats
	Score      *scoring.Stats
	Digest     *digest.Result
	Completed  []string
}

// NewState returns an empty state with a fresh run id.
func NewState() *State {
	return &State{RunID: newRunID(), StartedAt: time.Now().UTC()}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// CompanyIDs lists the classified company ids in order.
func (s *State) CompanyIDs() []string {
	ids := make([]string, 0, len(s.Classified))
	for _, c := range s.Classified {
		ids = append(ids, c.CompanyID)
	}
	return ids
}

// Coerce normalizes a stage input into a *State. Callers may hand over a
// bare candidate list, classified companies, company ids, an existing state
// or nothing at all.
func Coerce(in any) (*State, error) {
	switch v := in.(type) {
	case nil:
		return NewState(), nil
	case *State:
		if v == nil {
			return NewState(), nil
		}
		if v.RunID == "" {
			v.RunID = newRunID()
		}
		if v.StartedAt.IsZero() {
			v.StartedAt = time.Now().UTC()
		}
		return v, nil
	case State:
		return Coerce(&v)
	case []model.Candidate:
		st := NewState()
		st.Candidates = v
		return st, nil
	case []model.ClassifiedCompany:
		st := NewState()
		st.Classified = v
		return st, nil
	case []string:
		st := NewState()
		st.Classified = make([]model.ClassifiedCompany, 0, len(v))
		for _, id := range v {
			st.Classified = append(st.Classified, model.ClassifiedCompany{CompanyID: id})
		}
		return st, nil
	default:
		return nil, fmt.Errorf("cannot use %T as pipeline state", in)
	}
}
