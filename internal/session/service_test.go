package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsForeignQuiz(t *testing.T) {
	f := newFixture(2)

	_, err := f.svc.Create(context.Background(), f.quiz.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotHost)
}

func TestCreateUnknownQuiz(t *testing.T) {
	f := newFixture(2)

	_, err := f.svc.Create(context.Background(), uuid.New(), f.hostID)
	assert.Error(t, err)
}

func TestSnapshotWhileWaiting(t *testing.T) {
	f := newFixture(2)
	s := f.createSession(t)
	f.join(t, s.PIN, "alice")

	snap, err := f.svc.Snapshot(context.Background(), s.ID, uuid.Nil)
	require.NoError(t, err)

	assert.Equal(t, StatusWaiting, snap.Session.Status)
	assert.Nil(t, snap.CurrentQuestion, "no question is revealed before start")
	assert.Nil(t, snap.YourAnswer)
	assert.Len(t, snap.Participants, 1)
	assert.Equal(t, f.clock.Now(), snap.Now)
}

func TestSnapshotIncludesViewerAnswer(t *testing.T) {
	f := newFixture(2)
	s := f.createSession(t)
	alice := f.join(t, s.PIN, "alice")
	bob := f.join(t, s.PIN, "bob")
	_, err := f.state.Start(context.Background(), s.ID, f.hostID)
	require.NoError(t, err)

	q0 := f.quiz.Questions[0]
	_, err = f.ledger.SubmitAnswer(context.Background(), s.ID, alice.ID, q0.ID, q0.Options[0].ID)
	require.NoError(t, err)

	snap, err := f.svc.Snapshot(context.Background(), s.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentQuestion)
	assert.Equal(t, q0.ID, snap.CurrentQuestion.ID)
	require.NotNil(t, snap.YourAnswer)
	assert.Equal(t, q0.Options[0].ID, snap.YourAnswer.SelectedOptionID)

	// Bob has not answered yet; his snapshot carries no answer.
	snap, err = f.svc.Snapshot(context.Background(), s.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, snap.YourAnswer)
}

func TestSnapshotAfterFinish(t *testing.T) {
	f := newFixture(1)
	s := f.createSession(t)
	f.join(t, s.PIN, "alice")
	_, err := f.state.Start(context.Background(), s.ID, f.hostID)
	require.NoError(t, err)
	_, err = f.state.Finish(context.Background(), s.ID, f.hostID)
	require.NoError(t, err)

	snap, err := f.svc.Snapshot(context.Background(), s.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, snap.Session.Status)
	assert.Nil(t, snap.CurrentQuestion)
	assert.Len(t, snap.Leaderboard, 1)
}
