package persistence

import (
	"context"
	"database/sql"
	"time"

	"crosspost/domain/model"
)

// PsqlTokenRepository persists tokens in Postgres, keyed by (user id, platform).
type PsqlTokenRepository struct{ db *sql.DB }

func NewPsqlTokenRepository(db *sql.DB) *PsqlTokenRepository {
	return &PsqlTokenRepository{db: db}
}

func (r *PsqlTokenRepository) Save(ctx context.Context, t *model.StoredToken) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	var oauth1aToken, oauth1aSecret, platformUserID sql.NullString
	if t.OAuth1a != nil {
		oauth1aToken = sql.NullString{String: t.OAuth1a.AccessToken, Valid: true}
		oauth1aSecret = sql.NullString{String: t.OAuth1a.AccessTokenSecret, Valid: true}
	}
	if t.PlatformUserID != "" {
		platformUserID = sql.NullString{String: t.PlatformUserID, Valid: true}
	}

	q := `INSERT INTO platform_tokens (user_id, platform, access_token, refresh_token, expires_at, oauth1a_token, oauth1a_secret, platform_user_id, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			oauth1a_token=EXCLUDED.oauth1a_token,
			oauth1a_secret=EXCLUDED.oauth1a_secret,
			platform_user_id=EXCLUDED.platform_user_id,
			updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, t.UserID, t.Platform, t.AccessToken, t.RefreshToken, t.ExpiresAt, oauth1aToken, oauth1aSecret, platformUserID, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *PsqlTokenRepository) Get(ctx context.Context, userID, platform string) (*model.StoredToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT user_id, platform, access_token, refresh_token, expires_at, oauth1a_token, oauth1a_secret, platform_user_id, created_at, updated_at FROM platform_tokens WHERE user_id=$1 AND platform=$2`, userID, platform)
	tok := &model.StoredToken{}
	var oauth1aToken, oauth1aSecret, platformUserID sql.NullString
	if err := row.Scan(&tok.UserID, &tok.Platform, &tok.AccessToken, &tok.RefreshToken, &tok.ExpiresAt, &oauth1aToken, &oauth1aSecret, &platformUserID, &tok.CreatedAt, &tok.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.NewAppError(model.ErrNotAuthenticated, "no "+platform+" token stored for user "+userID, err)
		}
		return nil, err
	}
	if oauth1aToken.Valid && oauth1aSecret.Valid {
		tok.OAuth1a = &model.OAuth1aCredentials{
			AccessToken:       oauth1aToken.String,
			AccessTokenSecret: oauth1aSecret.String,
		}
	}
	if platformUserID.Valid {
		tok.PlatformUserID = platformUserID.String
	}
	return tok, nil
}

func (r *PsqlTokenRepository) Delete(ctx context.Context, userID, platform string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM platform_tokens WHERE user_id=$1 AND platform=$2`, userID, platform)
	return err
}

func (r *PsqlTokenRepository) UserIDs(ctx context.Context, platform string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM platform_tokens WHERE platform=$1`, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
