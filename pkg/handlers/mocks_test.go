package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/boreallogic/delphi-app/pkg/models"
	"github.com/boreallogic/delphi-app/pkg/services"
)

// mockStudyService implements services.StudyService for handler tests.
type mockStudyService struct {
	state        *models.StudyState
	studies      []*models.Study
	items        []*models.Item
	participants []*models.Participant
	participant  *models.Participant
	summaries    []*models.RoundSummary
	entries      []*models.AuditLogEntry
	err          error

	gotInput       services.CreateStudyInput
	gotParticipant services.ParticipantInput
	gotRole        models.Role
	gotRound       int
	gotActor       models.Actor
}

func (m *mockStudyService) CreateStudy(ctx context.Context, input services.CreateStudyInput, actor models.Actor) (*models.StudyState, error) {
	m.gotInput = input
	m.gotActor = actor
	return m.state, m.err
}

func (m *mockStudyService) GetStudy(ctx context.Context, id uuid.UUID) (*models.Study, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.state.Study, nil
}

func (m *mockStudyService) GetState(ctx context.Context, id uuid.UUID) (*models.StudyState, error) {
	return m.state, m.err
}

func (m *mockStudyService) ListStudies(ctx context.Context, limit int) ([]*models.Study, error) {
	return m.studies, m.err
}

func (m *mockStudyService) ListItems(ctx context.Context, studyID uuid.UUID) ([]*models.Item, error) {
	return m.items, m.err
}

func (m *mockStudyService) ListParticipants(ctx context.Context, studyID uuid.UUID) ([]*models.Participant, error) {
	return m.participants, m.err
}

func (m *mockStudyService) AddParticipant(ctx context.Context, studyID uuid.UUID, input services.ParticipantInput, actor models.Actor) (*models.Participant, error) {
	m.gotParticipant = input
	m.gotActor = actor
	return m.participant, m.err
}

func (m *mockStudyService) UpdateParticipantRole(ctx context.Context, studyID, participantID uuid.UUID, role models.Role, actor models.Actor) (*models.Participant, error) {
	m.gotRole = role
	m.gotActor = actor
	return m.participant, m.err
}

func (m *mockStudyService) GetRoundSummaries(ctx context.Context, studyID uuid.UUID, roundNumber int) ([]*models.RoundSummary, error) {
	m.gotRound = roundNumber
	return m.summaries, m.err
}

func (m *mockStudyService) GetAuditLog(ctx context.Context, studyID uuid.UUID, limit int) ([]*models.AuditLogEntry, error) {
	return m.entries, m.err
}

// mockLifecycleService implements services.StudyLifecycleService for handler tests.
type mockLifecycleService struct {
	state     *models.StudyState
	summaries []*models.RoundSummary
	err       error
	gotAction models.StudyAction
	gotRound  int
	gotActor  models.Actor
}

func (m *mockLifecycleService) ApplyAction(ctx context.Context, studyID uuid.UUID, action models.StudyAction, actor models.Actor) (*models.StudyState, error) {
	m.gotAction = action
	m.gotActor = actor
	return m.state, m.err
}

func (m *mockLifecycleService) RecomputeRoundSummaries(ctx context.Context, studyID uuid.UUID, roundNumber int, actor models.Actor) ([]*models.RoundSummary, error) {
	m.gotRound = roundNumber
	m.gotActor = actor
	return m.summaries, m.err
}

// mockRatingService implements services.RatingService for handler tests.
type mockRatingService struct {
	rating  *models.Rating
	ratings []*models.Rating
	err     error

	gotParticipant uuid.UUID
	gotInput       services.RatingInput
	gotRound       *int
}

func (m *mockRatingService) SubmitRating(ctx context.Context, participantID uuid.UUID, input services.RatingInput) (*models.Rating, error) {
	m.gotParticipant = participantID
	m.gotInput = input
	return m.rating, m.err
}

func (m *mockRatingService) ListRatings(ctx context.Context, participantID uuid.UUID, roundNumber *int) ([]*models.Rating, error) {
	m.gotParticipant = participantID
	m.gotRound = roundNumber
	return m.ratings, m.err
}
