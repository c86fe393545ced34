package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/menuboard/api/internal/repositories"
)

func TestWrapErrorClassification(t *testing.T) {
	cases := map[string]struct {
		err         error
		notFound    bool
		unavailable bool
	}{
		"no rows":         {err: sql.ErrNoRows, notFound: true},
		"bad conn":        {err: driver.ErrBadConn, unavailable: true},
		"connection lost": {err: &pq.Error{Code: "08006"}, unavailable: true},
		"too many conns":  {err: &pq.Error{Code: "53300"}, unavailable: true},
		"admin shutdown":  {err: &pq.Error{Code: "57P01"}, unavailable: true},
		"syntax":          {err: &pq.Error{Code: "42601"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := wrapError("catalog.test", tc.err)
			var repoErr repositories.RepositoryError
			require.ErrorAs(t, err, &repoErr)
			require.Equal(t, tc.notFound, repoErr.IsNotFound())
			require.Equal(t, tc.unavailable, repoErr.IsUnavailable())
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestWrapErrorPassesContextErrors(t *testing.T) {
	require.ErrorIs(t, wrapError("op", context.Canceled), context.Canceled)
	require.Equal(t, context.DeadlineExceeded, wrapError("op", context.DeadlineExceeded))
	require.NoError(t, wrapError("op", nil))
	require.False(t, errors.Is(wrapError("op", errors.New("x")), sql.ErrNoRows))
}
