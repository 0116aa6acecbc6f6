package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
)

func TestPsqlTokenRepositorySaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPsqlTokenRepository(db)
	expires := time.Now().Add(2 * time.Hour)

	mock.ExpectExec("INSERT INTO platform_tokens").
		WithArgs("u1", "x", "access", "refresh", expires,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Save(context.Background(), &model.StoredToken{
		UserID:       "u1",
		Platform:     model.PlatformX,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expires,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPsqlTokenRepositoryGetMapsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPsqlTokenRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"user_id", "platform", "access_token", "refresh_token", "expires_at",
		"oauth1a_token", "oauth1a_secret", "platform_user_id", "created_at", "updated_at",
	}).AddRow("u1", "x", "access", "refresh", now, "oa-token", "oa-secret", nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM platform_tokens WHERE user_id=").
		WithArgs("u1", "x").
		WillReturnRows(rows)

	token, err := repo.Get(context.Background(), "u1", model.PlatformX)
	require.NoError(t, err)
	assert.Equal(t, "access", token.AccessToken)
	require.NotNil(t, token.OAuth1a)
	assert.Equal(t, "oa-token", token.OAuth1a.AccessToken)
	assert.Equal(t, "oa-secret", token.OAuth1a.AccessTokenSecret)
	assert.Empty(t, token.PlatformUserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPsqlTokenRepositoryGetNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPsqlTokenRepository(db)
	mock.ExpectQuery("SELECT (.+) FROM platform_tokens WHERE user_id=").
		WithArgs("missing", "x").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Get(context.Background(), "missing", model.PlatformX)
	assert.True(t, model.IsKind(err, model.ErrNotAuthenticated))
}

func TestPsqlTokenRepositoryDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPsqlTokenRepository(db)
	mock.ExpectExec("DELETE FROM platform_tokens WHERE user_id=").
		WithArgs("u1", "x").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "u1", model.PlatformX))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPsqlTokenRepositoryUserIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPsqlTokenRepository(db)
	mock.ExpectQuery("SELECT user_id FROM platform_tokens WHERE platform=").
		WithArgs("x").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u2"))

	ids, err := repo.UserIDs(context.Background(), model.PlatformX)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
}
