package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"jds/internal/db"
	"jds/internal/dialect"
)

func TestPostgresRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres container skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("jds"),
		postgres.WithUsername("jds"),
		postgres.WithPassword("jds"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)
	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	d, err := dialect.ByName("postgres")
	require.NoError(t, err)
	conn, err := db.Open(d, url)
	require.NoError(t, err)
	defer conn.Close()

	types := newTypes()
	eng := New(conn, d, types, Options{})
	require.NoError(t, eng.Init(ctx))

	inv := sampleInvoice(types, "PG-1")
	require.NoError(t, eng.Save(ctx, SaveOptions{}, inv))
	require.NoError(t, eng.Save(ctx, SaveOptions{}, inv))

	out, err := eng.Load(ctx, Filter{Types: []int64{invoiceID}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	loaded := out[0].(*Invoice)
	require.Equal(t, "PG-1", loaded.Code)
	require.Equal(t, 2, loaded.Status)
	require.True(t, loaded.Paid)
	require.True(t, inv.Issued.Equal(loaded.Issued))
	require.Len(t, loaded.Lines, 3)
	require.Equal(t, "C-3", loaded.Lines[2].Sku)

	// a second engine over the same tables only probes
	again := New(conn, d, types, Options{})
	require.NoError(t, again.Init(ctx))
}
