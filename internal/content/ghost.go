package content

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// GhostStore reads items and settings from a Ghost SQLite database. The
// database is opened read-only; only the posts, tags, posts_tags and settings
// tables are consulted.
type GhostStore struct {
	db   *sql.DB
	path string
}

// OpenGhost opens the Ghost database at path.
func OpenGhost(path string) (*GhostStore, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errors.EnumerationError("could not open content database").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.EnumerationError("could not open content database").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return &GhostStore{db: db, path: path}, nil
}

// FindAll returns every post and page ordered by id, each with its tags in
// attachment order.
func (g *GhostStore) FindAll(ctx context.Context) ([]Item, error) {
	rows, err := g.db.QueryContext(ctx, "SELECT id, slug, status, page FROM posts ORDER BY id")
	if err != nil {
		return nil, g.queryError("query posts", err)
	}
	defer rows.Close()

	var items []Item
	index := make(map[int64]int)
	for rows.Next() {
		var (
			id     int64
			item   Item
			status string
			page   sql.NullBool
		)
		if err := rows.Scan(&id, &item.Slug, &status, &page); err != nil {
			return nil, g.queryError("scan post", err)
		}
		item.Status = Status(status)
		item.Page = page.Valid && page.Bool
		index[id] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, g.queryError("iterate posts", err)
	}

	tagRows, err := g.db.QueryContext(ctx, `
		SELECT pt.post_id, t.slug
		FROM posts_tags pt
		JOIN tags t ON t.id = pt.tag_id
		ORDER BY pt.post_id, pt.id`)
	if err != nil {
		return nil, g.queryError("query tags", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var postID int64
		var slug string
		if err := tagRows.Scan(&postID, &slug); err != nil {
			return nil, g.queryError("scan tag", err)
		}
		if i, ok := index[postID]; ok {
			items[i].Tags = append(items[i].Tags, Tag{Slug: slug})
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, g.queryError("iterate tags", err)
	}
	return items, nil
}

// Read returns the value of a settings row.
func (g *GhostStore) Read(ctx context.Context, key string) (string, error) {
	var value sql.NullString
	err := g.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", settingNotFound(key)
	}
	if err != nil {
		return "", g.queryError("read setting "+key, err)
	}
	return value.String, nil
}

// Close closes the database.
func (g *GhostStore) Close() error {
	return g.db.Close()
}

func (g *GhostStore) queryError(op string, err error) error {
	return errors.EnumerationError(fmt.Sprintf("content database: %s failed", op)).
		WithCause(err).
		WithContext("path", g.path).
		Build()
}
