package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// memStore is an in-memory stand-in for the PostgreSQL repositories.
// Transactions are serialized by a single mutex, which plays the role of the
// study row lock, and every WithinTx level restores a snapshot on error the
// way a savepoint does.
type memStore struct {
	mu    sync.Mutex
	data  memData
	clock time.Time

	// failOn makes the named operation ("summaries.replace", "audit.create", ...)
	// return the given error.
	failOn map[string]error
}

type ratingKey struct {
	participantID uuid.UUID
	itemID        uuid.UUID
	roundNumber   int
}

type memData struct {
	studies      map[uuid.UUID]models.Study
	rounds       map[uuid.UUID]models.Round
	items        map[uuid.UUID]models.Item
	participants map[uuid.UUID]models.Participant
	ratings      map[ratingKey]models.Rating
	summaries    map[uuid.UUID]models.RoundSummary
	audit        []models.AuditLogEntry
}

func newMemStore() *memStore {
	return &memStore{
		data: memData{
			studies:      map[uuid.UUID]models.Study{},
			rounds:       map[uuid.UUID]models.Round{},
			items:        map[uuid.UUID]models.Item{},
			participants: map[uuid.UUID]models.Participant{},
			ratings:      map[ratingKey]models.Rating{},
			summaries:    map[uuid.UUID]models.RoundSummary{},
		},
		clock:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		failOn: map[string]error{},
	}
}

func (d memData) clone() memData {
	c := memData{
		studies:      make(map[uuid.UUID]models.Study, len(d.studies)),
		rounds:       make(map[uuid.UUID]models.Round, len(d.rounds)),
		items:        make(map[uuid.UUID]models.Item, len(d.items)),
		participants: make(map[uuid.UUID]models.Participant, len(d.participants)),
		ratings:      make(map[ratingKey]models.Rating, len(d.ratings)),
		summaries:    make(map[uuid.UUID]models.RoundSummary, len(d.summaries)),
		audit:        append([]models.AuditLogEntry(nil), d.audit...),
	}
	for k, v := range d.studies {
		c.studies[k] = v
	}
	for k, v := range d.rounds {
		c.rounds[k] = v
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	for k, v := range d.participants {
		c.participants[k] = v
	}
	for k, v := range d.ratings {
		c.ratings[k] = v
	}
	for k, v := range d.summaries {
		c.summaries[k] = v
	}
	return c
}

func (s *memStore) repositories() Repositories {
	return Repositories{
		Studies:      memStudies{s},
		Rounds:       memRounds{s},
		Items:        memItems{s},
		Participants: memParticipants{s},
		Ratings:      memRatings{s},
		Summaries:    memSummaries{s},
		Audit:        memAudit{s},
	}
}

func (s *memStore) fail(op string) error {
	return s.failOn[op]
}

func (s *memStore) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

type memTxKey struct{}

func inMemTx(ctx context.Context) bool {
	_, ok := ctx.Value(memTxKey{}).(bool)
	return ok
}

// guard locks the store for calls made outside a transaction.
func (s *memStore) guard(ctx context.Context) func() {
	if inMemTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// snapshot returns a deep copy of the store contents for assertions.
func (s *memStore) snapshot() memData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.clone()
}

// memTxManager implements database.TxManager over a memStore.
type memTxManager struct {
	store *memStore
}

var _ database.TxManager = memTxManager{}

func (m memTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s := m.store
	if !inMemTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
		ctx = context.WithValue(ctx, memTxKey{}, true)
	}

	saved := s.data.clone()
	if err := fn(ctx); err != nil {
		s.data = saved
		return err
	}
	return nil
}

type memStudies struct{ s *memStore }

func (r memStudies) Create(ctx context.Context, study *models.Study) error {
	defer r.s.guard(ctx)()
	if err := r.s.fail("studies.create"); err != nil {
		return err
	}
	if study.ID == uuid.Nil {
		study.ID = uuid.New()
	}
	study.CreatedAt = r.s.now()
	study.UpdatedAt = study.CreatedAt
	r.s.data.studies[study.ID] = *study
	return nil
}

func (r memStudies) GetByID(ctx context.Context, id uuid.UUID) (*models.Study, error) {
	defer r.s.guard(ctx)()
	study, ok := r.s.data.studies[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &study, nil
}

func (r memStudies) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Study, error) {
	return r.GetByID(ctx, id)
}

func (r memStudies) GetForShare(ctx context.Context, id uuid.UUID) (*models.Study, error) {
	return r.GetByID(ctx, id)
}

func (r memStudies) List(ctx context.Context, limit int) ([]*models.Study, error) {
	defer r.s.guard(ctx)()
	var out []*models.Study
	for _, st := range r.s.data.studies {
		st := st
		out = append(out, &st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memStudies) UpdateState(ctx context.Context, study *models.Study) error {
	defer r.s.guard(ctx)()
	if err := r.s.fail("studies.update"); err != nil {
		return err
	}
	stored, ok := r.s.data.studies[study.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.Status = study.Status
	stored.CurrentRound = study.CurrentRound
	stored.UpdatedAt = r.s.now()
	r.s.data.studies[study.ID] = stored
	study.UpdatedAt = stored.UpdatedAt
	return nil
}

type memRounds struct{ s *memStore }

func (r memRounds) CreateBatch(ctx context.Context, rounds []*models.Round) error {
	defer r.s.guard(ctx)()
	for _, round := range rounds {
		if round.ID == uuid.Nil {
			round.ID = uuid.New()
		}
		if round.Status == "" {
			round.Status = models.RoundStatusPending
		}
		round.CreatedAt = r.s.now()
		round.UpdatedAt = round.CreatedAt
		r.s.data.rounds[round.ID] = *round
	}
	return nil
}

func (r memRounds) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*models.Round, error) {
	defer r.s.guard(ctx)()
	var out []*models.Round
	for _, round := range r.s.data.rounds {
		if round.StudyID == studyID {
			round := round
			out = append(out, &round)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (r memRounds) Update(ctx context.Context, round *models.Round) error {
	defer r.s.guard(ctx)()
	if err := r.s.fail("rounds.update"); err != nil {
		return err
	}
	stored, ok := r.s.data.rounds[round.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.Status = round.Status
	stored.OpensAt = round.OpensAt
	stored.ClosesAt = round.ClosesAt
	stored.UpdatedAt = r.s.now()
	r.s.data.rounds[round.ID] = stored
	return nil
}

type memItems struct{ s *memStore }

func (r memItems) CreateBatch(ctx context.Context, items []*models.Item) error {
	defer r.s.guard(ctx)()
	for _, item := range items {
		for _, existing := range r.s.data.items {
			if existing.StudyID == item.StudyID && item.ExternalID != "" && existing.ExternalID == item.ExternalID {
				return apperrors.ErrConflict
			}
		}
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.Tier == "" {
			item.Tier = models.ItemTierFullyRated
		}
		item.CreatedAt = r.s.now()
		r.s.data.items[item.ID] = *item
	}
	return nil
}

func (r memItems) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	defer r.s.guard(ctx)()
	item, ok := r.s.data.items[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &item, nil
}

func (r memItems) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*models.Item, error) {
	defer r.s.guard(ctx)()
	var out []*models.Item
	for _, item := range r.s.data.items {
		if item.StudyID == studyID {
			item := item
			out = append(out, &item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

type memParticipants struct{ s *memStore }

func (r memParticipants) Create(ctx context.Context, p *models.Participant) error {
	defer r.s.guard(ctx)()
	if err := r.s.fail("participants.create"); err != nil {
		return err
	}
	for _, existing := range r.s.data.participants {
		if existing.StudyID == p.StudyID && existing.Email == p.Email {
			return apperrors.ErrConflict
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = r.s.now()
	p.UpdatedAt = p.CreatedAt
	r.s.data.participants[p.ID] = *p
	return nil
}

func (r memParticipants) GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	defer r.s.guard(ctx)()
	p, ok := r.s.data.participants[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

func (r memParticipants) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*models.Participant, error) {
	defer r.s.guard(ctx)()
	var out []*models.Participant
	for _, p := range r.s.data.participants {
		if p.StudyID == studyID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r memParticipants) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	defer r.s.guard(ctx)()
	p, ok := r.s.data.participants[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.Role = role
	p.UpdatedAt = r.s.now()
	r.s.data.participants[id] = p
	return nil
}

type memRatings struct{ s *memStore }

func (r memRatings) Upsert(ctx context.Context, rating *models.Rating) error {
	defer r.s.guard(ctx)()
	if err := r.s.fail("ratings.upsert"); err != nil {
		return err
	}
	key := ratingKey{rating.ParticipantID, rating.ItemID, rating.RoundNumber}
	now := r.s.now()
	if existing, ok := r.s.data.ratings[key]; ok {
		rating.ID = existing.ID
		rating.CreatedAt = existing.CreatedAt
	} else {
		rating.ID = uuid.New()
		rating.CreatedAt = now
	}
	rating.UpdatedAt = now
	r.s.data.ratings[key] = *rating
	return nil
}

func (r memRatings) ListByRound(ctx context.Context, studyID uuid.UUID, roundNumber int) ([]*models.Rating, error) {
	defer r.s.guard(ctx)()
	var out []*models.Rating
	for _, rt := range r.s.data.ratings {
		if rt.StudyID == studyID && rt.RoundNumber == roundNumber {
			rt := rt
			out = append(out, &rt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memRatings) ListByParticipant(ctx context.Context, participantID uuid.UUID, roundNumber *int) ([]*models.Rating, error) {
	defer r.s.guard(ctx)()
	var out []*models.Rating
	for _, rt := range r.s.data.ratings {
		if rt.ParticipantID != participantID {
			continue
		}
		if roundNumber != nil && rt.RoundNumber != *roundNumber {
			continue
		}
		rt := rt
		out = append(out, &rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memSummaries struct{ s *memStore }

func (r memSummaries) ReplaceForRound(ctx context.Context, studyID uuid.UUID, roundNumber int, summaries []*models.RoundSummary) error {
	defer r.s.guard(ctx)()
	for id, sm := range r.s.data.summaries {
		if sm.StudyID == studyID && sm.RoundNumber == roundNumber {
			delete(r.s.data.summaries, id)
		}
	}
	if err := r.s.fail("summaries.replace"); err != nil {
		return err
	}
	for _, sm := range summaries {
		if sm.StudyID != studyID || sm.RoundNumber != roundNumber {
			return errors.New("summary does not belong to the round being replaced")
		}
		if _, dup := r.s.data.summaries[sm.ID]; dup {
			return apperrors.ErrConflict
		}
		r.s.data.summaries[sm.ID] = *sm
	}
	return nil
}

func (r memSummaries) ListByRound(ctx context.Context, studyID uuid.UUID, roundNumber int) ([]*models.RoundSummary, error) {
	defer r.s.guard(ctx)()
	var out []*models.RoundSummary
	for _, sm := range r.s.data.summaries {
		if sm.StudyID == studyID && sm.RoundNumber == roundNumber {
			sm := sm
			out = append(out, &sm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID.String() < out[j].ItemID.String() })
	return out, nil
}

type memAudit struct{ s *memStore }

func (r memAudit) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	defer r.s.guard(ctx)()
	if err := r.s.fail("audit.create"); err != nil {
		return err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = r.s.now()
	r.s.data.audit = append(r.s.data.audit, *entry)
	return nil
}

func (r memAudit) ListByStudy(ctx context.Context, studyID uuid.UUID, limit int) ([]*models.AuditLogEntry, error) {
	defer r.s.guard(ctx)()
	var out []*models.AuditLogEntry
	for i := len(r.s.data.audit) - 1; i >= 0; i-- {
		e := r.s.data.audit[i]
		if e.StudyID == studyID {
			out = append(out, &e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.RoundEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *models.RoundEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
