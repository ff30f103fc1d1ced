package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func newPostgresStoreWithMock(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func mustRecord(t *testing.T, appt *Appointment) []byte {
	t.Helper()
	record, err := json.Marshal(appt)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return record
}

func TestPostgresStoreCreate(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)
	appt := newTestAppointment("tok-1", "123456789")

	mock.ExpectExec(`INSERT INTO appointments (token, id, zoom_meeting_id, created_at, record) VALUES ($1, $2, $3, $4, $5)`).
		WithArgs(appt.Token, appt.ID, appt.ZoomMeetingID, appt.CreatedAt, mustRecord(t, appt)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.Create(context.Background(), appt); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresStoreGetByToken(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)
	appt := newTestAppointment("tok-1", "")

	mock.ExpectQuery(`SELECT record FROM appointments WHERE token = $1`).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(mustRecord(t, appt)))

	got, err := store.GetByToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("GetByToken returned error: %v", err)
	}
	if got.ID != appt.ID || got.Name != appt.Name {
		t.Fatalf("unexpected appointment: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresStoreGetByTokenNotFound(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)

	mock.ExpectQuery(`SELECT record FROM appointments WHERE token = $1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"record"}))

	if _, err := store.GetByToken(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresStoreUpdateLocksRow(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)
	appt := newTestAppointment("tok-1", "123456789")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT record FROM appointments WHERE token = $1 FOR UPDATE`).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(mustRecord(t, appt)))
	mock.ExpectExec(`UPDATE appointments SET zoom_meeting_id = $1, record = $2 WHERE token = $3`).
		WithArgs("123456789", pgxmock.AnyArg(), "tok-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	updated, err := store.Update(context.Background(), "tok-1", func(a *Appointment) error {
		a.Status = StatusInProgress
		return nil
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Status != StatusInProgress {
		t.Fatalf("status = %s", updated.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresStoreUpdateCallbackErrorRollsBack(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)
	appt := newTestAppointment("tok-1", "")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT record FROM appointments WHERE token = $1 FOR UPDATE`).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(mustRecord(t, appt)))
	mock.ExpectRollback()

	wantErr := errors.New("boom")
	if _, err := store.Update(context.Background(), "tok-1", func(*Appointment) error {
		return wantErr
	}); !errors.Is(err, wantErr) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresStoreUpdateByMeetingID(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)
	appt := newTestAppointment("tok-1", "123456789")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT record FROM appointments WHERE zoom_meeting_id = $1 FOR UPDATE`).
		WithArgs("123456789").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(mustRecord(t, appt)))
	mock.ExpectExec(`UPDATE appointments SET zoom_meeting_id = $1, record = $2 WHERE token = $3`).
		WithArgs("123456789", pgxmock.AnyArg(), "tok-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	if _, err := store.UpdateByMeetingID(context.Background(), "123456789", func(a *Appointment) error {
		a.Status = StatusInProgress
		return nil
	}); err != nil {
		t.Fatalf("UpdateByMeetingID returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresStoreDelete(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)

	mock.ExpectExec(`DELETE FROM appointments WHERE token = $1`).
		WithArgs("tok-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := store.Delete(context.Background(), "tok-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	mock.ExpectExec(`DELETE FROM appointments WHERE token = $1`).
		WithArgs("tok-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := store.Delete(context.Background(), "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresStoreList(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)
	first := newTestAppointment("tok-1", "")
	second := newTestAppointment("tok-2", "")

	mock.ExpectQuery(`SELECT record FROM appointments ORDER BY created_at DESC`).
		WillReturnRows(pgxmock.NewRows([]string{"record"}).
			AddRow(mustRecord(t, first)).
			AddRow(mustRecord(t, second)))

	list, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 2 || list[0].Token != "tok-1" || list[1].Token != "tok-2" {
		t.Fatalf("unexpected list: %+v", list)
	}
}
