package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr string
	}{
		{in: "abc234", want: "ABC234"},
		{in: "  XyZ789\n", want: "XYZ789"},
		{in: "", wantErr: "required"},
		{in: "   ", wantErr: "required"},
		{in: "ABC23", wantErr: "len"},
		{in: "ABC2345", wantErr: "len"},
		{in: "AB-234", wantErr: "alphanum"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := session.NormalizeCode(tt.in)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, session.ErrValidation)
				assert.Equal(t, tt.wantErr, session.FieldsOf(err)["code"])
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_ReturnsSessionAndQuestionsInOrder(t *testing.T) {
	f := newFixture(t)
	qs := f.feedbackQuestions(t)
	sess := f.session(t, "FDBK22", model.SessionKindFeedback, time.Minute, qs)

	r := session.NewJoinResolver(f.store, zerolog.Nop())
	joined, err := r.Resolve(context.Background(), " fdbk22 ", "")
	require.NoError(t, err)

	assert.Equal(t, sess.ID, joined.Session.ID)
	require.Len(t, joined.Questions, 2)
	assert.Equal(t, qs[0].ID, joined.Questions[0].ID)
	assert.Equal(t, qs[1].ID, joined.Questions[1].ID)
}

func TestResolve_StatusDecidesEligibility(t *testing.T) {
	f := newFixture(t)
	qs := f.feedbackQuestions(t)
	draft := f.session(t, "DRAFT2", model.SessionKindFeedback, 0, qs)
	active := f.session(t, "ACTIV2", model.SessionKindFeedback, time.Second, qs)
	ended := f.session(t, "ENDED2", model.SessionKindFeedback, time.Minute, qs)
	ok, err := f.store.End(context.Background(), ended.ID, epoch)
	require.NoError(t, err)
	require.True(t, ok)

	// The clock passing the end time alone does not close the session.
	f.clock.Set(epoch.Add(time.Hour))

	r := session.NewJoinResolver(f.store, zerolog.Nop())

	_, err = r.Resolve(context.Background(), draft.Code, "")
	assert.NoError(t, err)
	_, err = r.Resolve(context.Background(), active.Code, "")
	assert.NoError(t, err)
	_, err = r.Resolve(context.Background(), ended.Code, "")
	assert.ErrorIs(t, err, session.ErrNotEligible)
}

func TestResolve_UnknownCode(t *testing.T) {
	f := newFixture(t)
	r := session.NewJoinResolver(f.store, zerolog.Nop())

	_, err := r.Resolve(context.Background(), "ZZZZ99", "")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.False(t, session.Retryable(err))
}

func TestResolve_SectionEnforcement(t *testing.T) {
	f := newFixture(t)
	qs := f.feedbackQuestions(t)
	sess := f.session(t, "SECT22", model.SessionKindFeedback, time.Minute, qs)
	sess.Section = "XII-TKJ-2"
	require.NoError(t, f.store.Create(context.Background(), sess))

	enforcing := session.NewJoinResolver(f.store, zerolog.Nop(), session.WithSectionEnforcement(true))
	lenient := session.NewJoinResolver(f.store, zerolog.Nop())

	_, err := enforcing.Resolve(context.Background(), sess.Code, "XI-RPL-1")
	assert.ErrorIs(t, err, session.ErrNotEligible)

	_, err = enforcing.Resolve(context.Background(), sess.Code, "xii-tkj-2")
	assert.NoError(t, err)

	// A student without a section is never rejected.
	_, err = enforcing.Resolve(context.Background(), sess.Code, "")
	assert.NoError(t, err)

	_, err = lenient.Resolve(context.Background(), sess.Code, "XI-RPL-1")
	assert.NoError(t, err)
}

func TestResolve_StoreFailureIsPersistence(t *testing.T) {
	f := newFixture(t)
	store := &flakyStore{Store: f.store, failLookup: true}
	r := session.NewJoinResolver(store, zerolog.Nop())

	_, err := r.Resolve(context.Background(), "ABC234", "")
	require.ErrorIs(t, err, session.ErrPersistence)
	assert.ErrorIs(t, err, errStoreDown)
	assert.True(t, session.Retryable(err))
}
