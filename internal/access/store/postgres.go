package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"certtrace/internal/access/models"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
	txcontext "certtrace/pkg/platform/tx"
)

// Postgres stores memberships in role_members. Grant order is the
// position column.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Add(ctx context.Context, member models.Member) error {
	res, err := txcontext.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO role_members (role, actor, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (role, actor) DO NOTHING
	`, string(member.Role), member.Actor.String(), member.GrantedBy.String(), member.GrantedAt)
	if err != nil {
		return fmt.Errorf("insert role member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert role member: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

// AddBatch inserts all members of one role in a single statement, keeping
// input order and skipping actors already granted. All members must share
// role, grantor and time.
func (s *Postgres) AddBatch(ctx context.Context, members []models.Member) ([]models.Member, error) {
	if len(members) == 0 {
		return nil, nil
	}
	first := members[0]
	actors := make([]string, len(members))
	byActor := make(map[string]models.Member, len(members))
	for i, m := range members {
		actors[i] = m.Actor.String()
		byActor[actors[i]] = m
	}

	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, `
		INSERT INTO role_members (role, actor, granted_by, granted_at)
		SELECT $1, t.actor, $3, $4
		FROM unnest($2::text[]) WITH ORDINALITY AS t(actor, ord)
		ORDER BY t.ord
		ON CONFLICT (role, actor) DO NOTHING
		RETURNING actor
	`, string(first.Role), pq.Array(actors), first.GrantedBy.String(), first.GrantedAt)
	if err != nil {
		return nil, fmt.Errorf("batch insert role members: %w", err)
	}
	defer rows.Close()

	inserted := make(map[string]bool, len(members))
	for rows.Next() {
		var actor string
		if err := rows.Scan(&actor); err != nil {
			return nil, fmt.Errorf("scan inserted member: %w", err)
		}
		inserted[actor] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inserted members: %w", err)
	}

	added := make([]models.Member, 0, len(inserted))
	for _, a := range actors {
		if inserted[a] {
			added = append(added, byActor[a])
			delete(inserted, a)
		}
	}
	return added, nil
}

func (s *Postgres) Remove(ctx context.Context, role models.Role, actor domain.Address) error {
	res, err := txcontext.Use(ctx, s.db).ExecContext(ctx,
		`DELETE FROM role_members WHERE role = $1 AND actor = $2`,
		string(role), actor.String())
	if err != nil {
		return fmt.Errorf("delete role member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete role member: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Has(ctx context.Context, role models.Role, actor domain.Address) (bool, error) {
	var exists bool
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_members WHERE role = $1 AND actor = $2)`,
		string(role), actor.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check role member: %w", err)
	}
	return exists, nil
}

func (s *Postgres) List(ctx context.Context, role models.Role) ([]models.Member, error) {
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, `
		SELECT actor, granted_by, granted_at
		FROM role_members
		WHERE role = $1
		ORDER BY position
	`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list role members: %w", err)
	}
	defer rows.Close()

	var out []models.Member
	for rows.Next() {
		var actor, grantedBy string
		m := models.Member{Role: role}
		if err := rows.Scan(&actor, &grantedBy, &m.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan role member: %w", err)
		}
		if m.Actor, err = domain.ParseAddress(actor); err != nil {
			return nil, fmt.Errorf("stored actor: %w", err)
		}
		if m.GrantedBy, err = domain.ParseAddress(grantedBy); err != nil {
			return nil, fmt.Errorf("stored grantor: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
