package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
)

// Profile is the persisted disclosure state for one user.
type Profile struct {
	UserID           string     `json:"user_id"`
	Email            string     `json:"email"`
	TrustScore       int        `json:"trust_score"`
	SobrietyDate     *time.Time `json:"sobriety_date,omitempty"`
	RevealPercent    int        `json:"current_reveal_percent"`
	AvatarURL        string     `json:"avatar_url"`
	OriginalPhotoURL string     `json:"original_photo_url,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

const profileColumns = `user_id, email, trust_score, sobriety_date, current_reveal_percent,
	avatar_url, original_photo_url, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.UserID, &p.Email, &p.TrustScore, &p.SobrietyDate, &p.RevealPercent,
		&p.AvatarURL, &p.OriginalPhotoURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureProfile inserts p if the user has no profile yet, otherwise marks the
// existing profile active. It returns the stored profile and whether it was created.
func (s *Store) EnsureProfile(ctx context.Context, p Profile) (*Profile, bool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO veil_profiles (user_id, email, trust_score, current_reveal_percent, avatar_url, original_photo_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id)
		DO UPDATE SET last_active_at = now()
		RETURNING `+profileColumns+`, (xmax = 0) AS inserted`,
		p.UserID, p.Email, p.TrustScore, p.RevealPercent, p.AvatarURL, p.OriginalPhotoURL,
	)

	var out Profile
	var inserted bool
	err := row.Scan(&out.UserID, &out.Email, &out.TrustScore, &out.SobrietyDate, &out.RevealPercent,
		&out.AvatarURL, &out.OriginalPhotoURL, &out.CreatedAt, &out.UpdatedAt, &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("ensure profile: %w", err)
	}
	return &out, inserted, nil
}

// GetProfile fetches the profile for a user.
func (s *Store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM veil_profiles WHERE user_id = $1`, userID)
	p, err := scanProfile(row)
	if err != nil {
		return nil, notFound(err, "get profile")
	}
	return p, nil
}

// lockProfile reads a profile inside tx and holds its row lock until commit.
func lockProfile(ctx context.Context, tx pgx.Tx, userID string) (*Profile, error) {
	row := tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM veil_profiles WHERE user_id = $1 FOR UPDATE`, userID)
	p, err := scanProfile(row)
	if err != nil {
		return nil, notFound(err, "lock profile")
	}
	return p, nil
}

// UpdateTrustScore runs a read-modify-write of the trust score in one
// transaction. fn receives the committed score and returns the new one; an
// error from fn aborts without writing.
func (s *Store) UpdateTrustScore(ctx context.Context, userID string, fn func(current int) (int, error)) (from, to int, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockProfile(ctx, tx, userID)
	if err != nil {
		return 0, 0, err
	}
	next, err := fn(p.TrustScore)
	if err != nil {
		return p.TrustScore, p.TrustScore, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE veil_profiles SET trust_score = $2, updated_at = now()
		WHERE user_id = $1`,
		userID, next,
	); err != nil {
		return 0, 0, fmt.Errorf("update trust score: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return p.TrustScore, next, nil
}

// UpdateRevealPercent runs a read-modify-write of the reveal percent. fn sees
// the locked profile, so any gate it applies uses the latest committed trust score.
func (s *Store) UpdateRevealPercent(ctx context.Context, userID string, fn func(p Profile) (int, error)) (from, to int, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockProfile(ctx, tx, userID)
	if err != nil {
		return 0, 0, err
	}
	next, err := fn(*p)
	if err != nil {
		return p.RevealPercent, p.RevealPercent, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE veil_profiles SET current_reveal_percent = $2, updated_at = now()
		WHERE user_id = $1`,
		userID, next,
	); err != nil {
		return 0, 0, fmt.Errorf("update reveal percent: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return p.RevealPercent, next, nil
}

// SetSobrietyDate stores the reference date and returns the previous one.
func (s *Store) SetSobrietyDate(ctx context.Context, userID string, date time.Time) (*time.Time, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockProfile(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE veil_profiles SET sobriety_date = $2, updated_at = now()
		WHERE user_id = $1`,
		userID, date,
	); err != nil {
		return nil, fmt.Errorf("update sobriety date: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p.SobrietyDate, nil
}

// SetPhoto records new photo URLs and returns the previous original photo URL.
func (s *Store) SetPhoto(ctx context.Context, userID, originalURL, avatarURL string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockProfile(ctx, tx, userID)
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE veil_profiles SET original_photo_url = $2, avatar_url = $3, updated_at = now()
		WHERE user_id = $1`,
		userID, originalURL, avatarURL,
	); err != nil {
		return "", fmt.Errorf("update photo: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return p.OriginalPhotoURL, nil
}

// CelebrateMilestone sets the per-milestone celebration flag and applies the
// bonus computed by fn in the same transaction. A milestone that was already
// celebrated returns sentinel.ErrConflict and leaves the score unchanged.
func (s *Store) CelebrateMilestone(ctx context.Context, userID, milestoneID string, fn func(p Profile) (int, error)) (from, to int, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockProfile(ctx, tx, userID)
	if err != nil {
		return 0, 0, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO milestone_celebrations (user_id, milestone_id, celebrated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, milestone_id) DO NOTHING`,
		userID, milestoneID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("insert celebration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return p.TrustScore, p.TrustScore, fmt.Errorf("milestone %s already celebrated: %w", milestoneID, sentinel.ErrConflict)
	}

	next, err := fn(*p)
	if err != nil {
		return p.TrustScore, p.TrustScore, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE veil_profiles SET trust_score = $2, updated_at = now()
		WHERE user_id = $1`,
		userID, next,
	); err != nil {
		return 0, 0, fmt.Errorf("apply celebration bonus: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return p.TrustScore, next, nil
}

// ListCelebrations returns the milestone IDs a user has celebrated, oldest first.
func (s *Store) ListCelebrations(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT milestone_id FROM milestone_celebrations
		WHERE user_id = $1
		ORDER BY celebrated_at, milestone_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list celebrations: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan celebrations: %w", err)
	}
	return ids, nil
}
