package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type RepoTestSuite struct {
	suite.Suite
	mock pgxmock.PgxPoolIface
	repo *Repo
	ctx  context.Context
}

func (s *RepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	s.Require().NoError(err)
	s.mock = mock
	s.repo = NewRepo(mock)
	s.ctx = context.Background()
}

func (s *RepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func TestRepoTestSuite(t *testing.T) {
	suite.Run(t, new(RepoTestSuite))
}

var columns = []string{"id", "kind", "actor", "origin", "destination", "picking_id", "reference",
	"status", "state", "message", "lines", "created_at", "updated_at"}

func (s *RepoTestSuite) TestInsert_AssignsIDAndStoresLines() {
	e := &Entry{
		Kind:        KindTransfer,
		Actor:       "tg:42",
		Origin:      "Bodega",
		Destination: "Visto",
		PickingID:   9,
		Reference:   "BOD/INT/00009",
		Status:      StatusDone,
		State:       "done",
		Lines:       []Line{{Code: "SKU-1", Name: "Tornillo", Quantity: 2}},
	}
	picking := int64(9)
	s.mock.ExpectExec(`INSERT INTO operations`).
		WithArgs(pgxmock.AnyArg(), "transfer", "tg:42", "Bodega", "Visto", &picking, "BOD/INT/00009",
			"done", "done", "", []byte(`[{"code":"SKU-1","name":"Tornillo","quantity":2}]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s.Require().NoError(s.repo.Insert(s.ctx, e))
	s.NotEqual(uuid.Nil, e.ID)
}

func (s *RepoTestSuite) TestInsert_FailedRunWithoutPicking() {
	e := &Entry{ID: uuid.New(), Kind: KindEntry, Status: StatusFailed, Message: "El almacén 'X' no existe."}
	var nilPicking *int64
	s.mock.ExpectExec(`INSERT INTO operations`).
		WithArgs(e.ID, "entry", "", "", "", nilPicking, "", "failed", "", e.Message, []byte("[]")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s.NoError(s.repo.Insert(s.ctx, e))
}

func (s *RepoTestSuite) TestListPending() {
	id := uuid.New()
	since := time.Now().Add(-72 * time.Hour)
	created := time.Now().Add(-time.Hour)

	s.mock.ExpectQuery(`SELECT .* FROM operations\s+WHERE status = \$1`).
		WithArgs("pending", since).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			id, "transfer", "tg:42", "Bodega", "Visto", int64(9), "BOD/INT/00009",
			"pending", "assigned", "", []byte(`[{"code":"SKU-1","quantity":2}]`), created, created,
		))

	got, err := s.repo.ListPending(s.ctx, since)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(id, got[0].ID)
	s.Equal(StatusPending, got[0].Status)
	s.Equal(int64(9), got[0].PickingID)
	s.Equal([]Line{{Code: "SKU-1", Quantity: 2}}, got[0].Lines)
}

func (s *RepoTestSuite) TestListRecent_QueryError() {
	s.mock.ExpectQuery(`SELECT .* FROM operations\s+ORDER BY created_at DESC`).
		WithArgs(10).
		WillReturnError(errors.New("connection lost"))

	_, err := s.repo.ListRecent(s.ctx, 10)
	s.Error(err)
}

func (s *RepoTestSuite) TestUpdateState() {
	id := uuid.New()
	s.mock.ExpectExec(`UPDATE operations SET status`).
		WithArgs(id, "done", "done").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	s.mock.ExpectExec(`UPDATE operations SET status`).
		WithArgs(id, "failed", "cancel").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	s.NoError(s.repo.UpdateState(s.ctx, id, StatusDone, "done"))
	err := s.repo.UpdateState(s.ctx, id, StatusFailed, "cancel")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}
