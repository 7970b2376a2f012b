package log

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrom_EmptyContext_ReturnsDefault(t *testing.T) {
	t.Parallel()

	require.Same(t, slog.Default(), From(context.Background()))
}

func TestIntoFrom_RoundTrip(t *testing.T) {
	t.Parallel()

	l := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := Into(context.Background(), l)

	require.Same(t, l, From(ctx))
}

func TestFrom_NilLoggerInContext_FallsBack(t *testing.T) {
	t.Parallel()

	ctx := Into(context.Background(), nil)
	require.Same(t, slog.Default(), From(ctx))
}

func TestInto_Overwrite_UsesLatest(t *testing.T) {
	t.Parallel()

	l1 := slog.New(slog.NewTextHandler(os.Stdout, nil))
	l2 := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := Into(context.Background(), l1)
	ctx = Into(ctx, l2)

	require.Same(t, l2, From(ctx))
}
