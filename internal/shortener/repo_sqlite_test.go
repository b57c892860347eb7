package shortener

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sundayezeilo/shortlinker/internal/errx"
)

func openTestSQLite(t *testing.T) *SQLiteSource {
	t.Helper()
	url := "file:" + filepath.Join(t.TempDir(), "links.db")
	src, err := OpenSQLiteSource(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func TestSQLiteDriverName(t *testing.T) {
	assert.Equal(t, "libsql", SQLiteDriverName("libsql://links.turso.io"))
	assert.Equal(t, "libsql", SQLiteDriverName("wss://links.turso.io"))
	assert.Equal(t, "sqlite", SQLiteDriverName("file:links.db"))
	assert.Equal(t, "sqlite", SQLiteDriverName(":memory:"))
}

func TestSQLiteSource(t *testing.T) {
	src := openTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, src.Init(ctx))
	require.NoError(t, src.Init(ctx), "Init must be idempotent")

	domains, err := src.Domains(ctx)
	require.NoError(t, err)
	assert.Empty(t, domains)

	_, err = src.db.ExecContext(ctx, `INSERT INTO short_domains (id, name, domain, active, default_redirect_to) VALUES
		('d1', 'Short', 'sho.rt', 1, 'https://fallback.example'),
		('d2', 'Dup', 'sho.rt', 1, NULL)`)
	require.NoError(t, err)
	_, err = src.db.ExecContext(ctx, `INSERT INTO short_links (name, domain_id, "key", redirect_to, active, active_to) VALUES
		('Promo', 'd1', 'promo', 'https://example.com/promo', 1, 1900000000000),
		('Off', 'd1', 'off', 'https://example.com/off', 0, NULL)`)
	require.NoError(t, err)

	r := NewRepository(src, nil)

	d, err := r.FindDomainByOrigin(ctx, "sho.rt")
	require.NoError(t, err)
	assert.Equal(t, "d1", d.ID, "first inserted row wins")
	assert.True(t, d.Active)
	require.NotNil(t, d.DefaultRedirectTo)
	assert.Equal(t, "https://fallback.example", *d.DefaultRedirectTo)

	l, err := r.FindLinkByKey(ctx, "promo")
	require.NoError(t, err)
	assert.True(t, l.Active)
	assert.Nil(t, l.ActiveFrom)
	require.NotNil(t, l.ActiveTo)
	assert.Equal(t, int64(1900000000000), *l.ActiveTo)

	off, err := r.FindLinkByKey(ctx, "off")
	require.NoError(t, err)
	assert.False(t, off.Active)
}

func TestSQLiteSource_MissingTables(t *testing.T) {
	src := openTestSQLite(t)

	_, err := src.Links(context.Background())
	require.Error(t, err)
	assert.Equal(t, errx.Unavailable, errx.KindOf(err))
	assert.Equal(t, "shortener.sqlite.Links", errx.OpOf(err))
}

func TestSQLiteSource_CorruptRow(t *testing.T) {
	src := openTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, src.Init(ctx))

	_, err := src.db.ExecContext(ctx, `INSERT INTO short_links (domain_id, "key", redirect_to, active, active_from)
		VALUES ('d1', 'promo', 'https://example.com', 1, 'soon')`)
	require.NoError(t, err)

	_, err = src.Links(ctx)
	require.Error(t, err)
	assert.Equal(t, errx.Corrupt, errx.KindOf(err))
}
